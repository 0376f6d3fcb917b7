package dom

// Kind enumerates the field kinds understood by the schema mapper. The first block are base
// kinds with an entry in the mapping table, the second are derived kinds that resolve to a
// base kind through the ancestry table.
type Kind uint32

const (
	KindDynamic Kind = iota // untyped, accepts any value
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindBinary
	KindID
	KindRef
	KindDoc
	KindList
	KindMap
	KindMedia

	KindURL
	KindEmail
	KindUUID
	KindLong
	KindDecimal
	KindGeoPoint
	KindPoint
	KindLineString
	KindPolygon
	KindSortedList

	kindNext
)

// ancestry maps derived kinds to their parent kind. Custom kinds registered at startup are
// added here; resolution walks the chain until it hits a base kind.
var ancestry = map[Kind]Kind{
	KindURL:        KindString,
	KindEmail:      KindString,
	KindUUID:       KindString,
	KindLong:       KindInt,
	KindDecimal:    KindFloat,
	KindGeoPoint:   KindList,
	KindPoint:      KindDoc,
	KindLineString: KindDoc,
	KindPolygon:    KindDoc,
	KindSortedList: KindList,
}

var kindNames = map[Kind]string{
	KindDynamic:    "dynamic",
	KindString:     "string",
	KindInt:        "int",
	KindFloat:      "float",
	KindBool:       "bool",
	KindTime:       "time",
	KindBinary:     "binary",
	KindID:         "id",
	KindRef:        "ref",
	KindDoc:        "doc",
	KindList:       "list",
	KindMap:        "map",
	KindMedia:      "media",
	KindURL:        "url",
	KindEmail:      "email",
	KindUUID:       "uuid",
	KindLong:       "long",
	KindDecimal:    "decimal",
	KindGeoPoint:   "geopoint",
	KindPoint:      "point",
	KindLineString: "linestring",
	KindPolygon:    "polygon",
	KindSortedList: "sortedlist",
}

var customNext = kindNext

// RegisterKind adds a custom kind deriving from parent and returns it. Must be called during
// startup before any model registration; the tables are read-only afterwards.
func RegisterKind(name string, parent Kind) Kind {
	k := customNext
	customNext++
	ancestry[k] = parent
	kindNames[k] = name
	return k
}

// Base resolves k to the first base kind in its ancestry chain. Kinds without a resolvable
// ancestor degrade to KindDynamic, they are never an error.
func (k Kind) Base() Kind {
	for i := 0; i < 32; i++ {
		if k <= KindMedia {
			return k
		}
		p, ok := ancestry[k]
		if !ok {
			return KindDynamic
		}
		k = p
	}
	return KindDynamic
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "dynamic"
}
