package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/MongoEngine/eve-mongoengine/dom"
	"github.com/MongoEngine/eve-mongoengine/gen"
	"github.com/MongoEngine/eve-mongoengine/qry"
	"github.com/MongoEngine/eve-mongoengine/qry/qrymem"
	"github.com/MongoEngine/eve-mongoengine/qry/qrymgo"
)

// demoRegistry declares the sample blog resources the tool operates on
// when no application registers its own.
func demoRegistry() (*gen.Registry, error) {
	person := dom.MustNew("Person",
		&dom.Field{Name: "Name", Wire: "name", Kind: dom.KindString, Bits: dom.BitReq | dom.BitUniq},
		&dom.Field{Name: "Mail", Wire: "mail", Kind: dom.KindEmail},
		&dom.Field{Name: "Site", Wire: "site", Kind: dom.KindURL},
	)
	post := dom.MustNew("Post",
		&dom.Field{Name: "Title", Wire: "title", Kind: dom.KindString, Bits: dom.BitReq},
		&dom.Field{Name: "Body", Wire: "body", Kind: dom.KindString},
		&dom.Field{Name: "Rank", Wire: "rank", Kind: dom.KindInt},
		&dom.Field{Name: "Tags", Wire: "tags", Kind: dom.KindList,
			Elem: &dom.Field{Name: "E", Kind: dom.KindString}},
		&dom.Field{Name: "Cover", Wire: "cover", Kind: dom.KindMedia,
			Default: func() interface{} { return uuid.NewString() }},
		&dom.Field{Name: "Author", Wire: "author", Kind: dom.KindRef, Ref: person},
	)
	reg := gen.NewRegistry(gen.Options{})
	if _, err := reg.Register(person, nil); err != nil {
		return nil, err
	}
	if _, err := reg.Register(post, dom.Settings{dom.SetSoftDelete: true}); err != nil {
		return nil, err
	}
	return reg, nil
}

// translator connects the demo registry to the configured database or
// to a seeded memory backend.
func translator(ctx context.Context) (*qry.Translator, error) {
	reg, err := demoRegistry()
	if err != nil {
		return nil, err
	}
	uri := *dbFlag
	if uri == "" {
		uri = os.Getenv("EVEMGO_DB")
	}
	if uri != "" {
		bend, err := qrymgo.Connect(ctx, uri, *nameFlag)
		if err != nil {
			return nil, err
		}
		return qry.New(reg, bend), nil
	}
	bend := qrymem.New()
	bend.Index("person", "name")
	tr := qry.New(reg, bend)
	pids, err := tr.Insert(ctx, "person",
		bson.M{"name": "ann", "mail": "ann@example.org"},
		bson.M{"name": "bob"})
	if err != nil {
		return nil, err
	}
	_, err = tr.Insert(ctx, "post",
		bson.M{"title": "hello", "rank": 1, "tags": []interface{}{"intro"}, "author": pids[0]},
		bson.M{"title": "second", "rank": 2, "author": pids[0]},
		bson.M{"title": "reply", "rank": 3, "author": pids[1]})
	if err != nil {
		return nil, err
	}
	return tr, nil
}

func resources(args []string) error {
	reg, err := demoRegistry()
	if err != nil {
		return err
	}
	for _, name := range reg.Resources() {
		fmt.Println(name)
	}
	return nil
}

func schema(args []string) error {
	return printRegs(args, func(reg *gen.Registration) interface{} { return reg.Schema })
}

func settings(args []string) error {
	return printRegs(args, func(reg *gen.Registration) interface{} { return reg.Settings })
}

func printRegs(args []string, part func(*gen.Registration) interface{}) error {
	reg, err := demoRegistry()
	if err != nil {
		return err
	}
	names := args
	if len(names) == 0 {
		names = reg.Resources()
	}
	out := make(map[string]interface{}, len(names))
	for _, name := range names {
		r, err := reg.Lookup(name)
		if err != nil {
			return err
		}
		out[name] = part(r)
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
