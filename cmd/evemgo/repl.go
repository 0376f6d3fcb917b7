package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/peterh/liner"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/MongoEngine/eve-mongoengine/qry"
)

const replHelp = `commands:
   find <resource> [filter]     list documents, filter in json or prefix syntax
   get <resource> <id>          fetch one document
   post <resource> <json>       insert a document
   patch <resource> <id> <json> apply a partial update
   del <resource> <id>          delete a document
   exit                         leave the repl
`

func repl(args []string) error {
	ctx := context.Background()
	tr, err := translator(ctx)
	if err != nil {
		return err
	}
	lin := liner.NewLiner()
	defer lin.Close()
	lin.SetMultiLineMode(true)
	var got string
	for i := 0; ; i++ {
		if i == 0 {
			got, err = lin.PromptWithSuggestion("> ", "find post ", 10)
		} else {
			got, err = lin.Prompt("> ")
		}
		if err != nil {
			if err == io.EOF {
				fmt.Println()
				return nil
			}
			log.Printf("unexpected error reading prompt: %v", err)
			continue
		}
		got = strings.TrimSpace(got)
		if got == "" {
			continue
		}
		if got == "exit" || got == "quit" {
			return nil
		}
		lin.AppendHistory(got)
		if err = eval(ctx, tr, got); err != nil {
			log.Printf("error: %v", err)
		}
	}
}

func eval(ctx context.Context, tr *qry.Translator, line string) error {
	parts := strings.SplitN(line, " ", 3)
	cmd := parts[0]
	if cmd == "help" {
		fmt.Print(replHelp)
		return nil
	}
	if len(parts) < 2 {
		fmt.Print(replHelp)
		return nil
	}
	res := parts[1]
	var rest string
	if len(parts) > 2 {
		rest = parts[2]
	}
	switch cmd {
	case "find":
		docs, total, err := tr.Find(ctx, res, &qry.Req{Where: rest}, nil)
		if err != nil {
			return err
		}
		fmt.Printf("= %d of %d\n", len(docs), total)
		for _, doc := range docs {
			show(doc)
		}
	case "get":
		doc, err := tr.Get(ctx, res, rest)
		if err != nil {
			return err
		}
		show(doc)
	case "post":
		doc := bson.M{}
		if err := json.Unmarshal([]byte(rest), &doc); err != nil {
			return err
		}
		if _, err := tr.Insert(ctx, res, doc); err != nil {
			return err
		}
		show(doc)
	case "patch":
		idbody := strings.SplitN(rest, " ", 2)
		if len(idbody) < 2 {
			fmt.Print(replHelp)
			return nil
		}
		updates := bson.M{}
		if err := json.Unmarshal([]byte(idbody[1]), &updates); err != nil {
			return err
		}
		doc, err := tr.Update(ctx, res, idbody[0], updates)
		if err != nil {
			return err
		}
		show(doc)
	case "del":
		n, err := tr.Remove(ctx, res, bson.M{"_id": rest})
		if err != nil {
			return err
		}
		fmt.Printf("= deleted %d\n", n)
	default:
		fmt.Print(replHelp)
	}
	return nil
}

func show(doc bson.M) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Printf("= %v\n", doc)
		return
	}
	fmt.Printf("%s\n", b)
}
