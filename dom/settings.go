package dom

// Settings keys understood by the registry and the data layer.
const (
	SetResourceMethods = "resource_methods"
	SetItemMethods     = "item_methods"
	SetURL             = "url"
	SetAllowedRoles    = "allowed_roles"
	SetExcludeFields   = "exclude_fields"
	SetSoftDelete      = "soft_delete"
	SetUpdateStrategy  = "update_strategy"
)

// Update strategies, see qry.Translator.Update.
const (
	StrategyAtomic = "atomic"
	StrategyResave = "resave"
)

// Settings keeps per-resource configuration. Update merges recursively: nested settings
// combine key by key instead of replacing the nested value wholesale.
type Settings map[string]interface{}

// DefaultSettings returns the resource settings applied before caller overrides.
func DefaultSettings() Settings {
	return Settings{
		SetResourceMethods: []string{"GET", "POST", "DELETE"},
		SetItemMethods:     []string{"GET", "PATCH", "PUT", "DELETE"},
	}
}

// Update merges other into s, combining nested settings recursively.
func (s Settings) Update(other Settings) {
	for key, val := range other {
		if cur, ok := s[key]; ok {
			cd, cok := asSettings(cur)
			od, ook := asSettings(val)
			if cok && ook {
				cd.Update(od)
				s[key] = cd
				continue
			}
		}
		s[key] = val
	}
}

// Clone returns a deep copy, so derived registrations can be mutated independently.
func (s Settings) Clone() Settings {
	res := make(Settings, len(s))
	for key, val := range s {
		res[key] = cloneVal(val)
	}
	return res
}

func cloneVal(val interface{}) interface{} {
	switch v := val.(type) {
	case Settings:
		return v.Clone()
	case map[string]interface{}:
		return Settings(v).Clone()
	case []string:
		c := make([]string, len(v))
		copy(c, v)
		return c
	case []interface{}:
		c := make([]interface{}, len(v))
		for i, e := range v {
			c[i] = cloneVal(e)
		}
		return c
	}
	return val
}

func asSettings(v interface{}) (Settings, bool) {
	switch d := v.(type) {
	case Settings:
		return d, true
	case map[string]interface{}:
		return Settings(d), true
	}
	return nil, false
}

// Str returns the string setting for key or the empty string.
func (s Settings) Str(key string) string {
	v, _ := s[key].(string)
	return v
}

// Bool returns the boolean setting for key or false.
func (s Settings) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}

// Strs returns the string list setting for key or nil.
func (s Settings) Strs(key string) []string {
	switch v := s[key].(type) {
	case []string:
		return v
	case []interface{}:
		res := make([]string, 0, len(v))
		for _, e := range v {
			if str, ok := e.(string); ok {
				res = append(res, str)
			}
		}
		return res
	}
	return nil
}
