package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"

	"github.com/luposdate/luposdate-sub008/internal/config"
	"github.com/luposdate/luposdate-sub008/internal/dictionary"
	"github.com/luposdate/luposdate-sub008/internal/index"
	"github.com/luposdate/luposdate-sub008/internal/ntriples"
	"github.com/luposdate/luposdate-sub008/internal/storage"
	"github.com/luposdate/luposdate-sub008/pkg/rdf"
	"github.com/luposdate/luposdate-sub008/pkg/store"
)

type demoCmd struct{}

type loadCmd struct {
	File  string `arg:"positional,required" help:"N-Triples file, - for standard input"`
	Index string `arg:"--index" help:"index name (default: codec and order, e.g. interned-spo)"`
}

type dumpCmd struct {
	Index string `arg:"--index,required" help:"index to print"`
}

type listCmd struct{}

type envCmd struct{}

type args struct {
	Demo *demoCmd `arg:"subcommand:demo" help:"index sample triples in memory and print them back"`
	Load *loadCmd `arg:"subcommand:load" help:"index an N-Triples file under LUPOS_CODEC and LUPOS_ORDER"`
	Dump *dumpCmd `arg:"subcommand:dump" help:"print the entries of a stored index"`
	List *listCmd `arg:"subcommand:list" help:"list the stored indices"`
	Env  *envCmd  `arg:"subcommand:env" help:"print the configuration as environment assignments"`
}

func (args) Description() string {
	return "luposidx stores RDF triples in compressed B+-tree leaf pages.\n"
}

func main() {
	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.WriteHelp(os.Stdout)
		fmt.Println()
		printConfigHelp()
		os.Exit(1)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	stdr.SetVerbosity(cfg.Verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName(config.AppName)

	switch {
	case a.Env != nil:
		config.PrintEnv(cfg, os.Stdout)
	case a.Demo != nil:
		err = runDemo(cfg, os.Stdout, logger)
	case a.Load != nil:
		err = withStorage(cfg, logger, true, func(txn store.Transaction, dict *dictionary.Dictionary) error {
			return runLoad(txn, dict, cfg, a.Load.File, a.Load.Index, os.Stdout, logger)
		})
	case a.Dump != nil:
		err = withStorage(cfg, logger, false, func(txn store.Transaction, dict *dictionary.Dictionary) error {
			return dumpIndex(txn, dict, a.Dump.Index, cfg.Lenient, os.Stdout, logger)
		})
	case a.List != nil:
		err = withStorage(cfg, logger, false, func(txn store.Transaction, _ *dictionary.Dictionary) error {
			return listIndexes(txn, os.Stdout)
		})
	}
	if err != nil {
		logger.Error(err, "command failed")
		os.Exit(1)
	}
}

func printConfigHelp() {
	cfg, err := config.LoadFrom(config.Env{})
	if err != nil {
		return
	}
	config.PrintHelp(cfg, os.Stdout)
}

// withStorage opens the store in cfg.DataDir, loads the dictionary and runs fn
// in one transaction. Writable transactions are committed together with the
// dictionary when fn succeeds.
func withStorage(cfg *config.Config, logger logr.Logger, writable bool, fn func(store.Transaction, *dictionary.Dictionary) error) error {
	s, err := storage.NewBadgerStorage(cfg.DataDir, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	return inTransaction(s, writable, fn)
}

func inTransaction(s store.Storage, writable bool, fn func(store.Transaction, *dictionary.Dictionary) error) error {
	txn, err := s.Begin(writable)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	dict := dictionary.New()
	if err := dict.Load(txn); err != nil {
		return err
	}
	if err := fn(txn, dict); err != nil {
		return err
	}
	if !writable {
		return nil
	}
	if err := dict.Save(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// defaultIndexName names an index after its codec and, for ordered codecs,
// its collation order.
func defaultIndexName(cfg *config.Config) string {
	if cfg.CodecKind().Ordered() {
		return string(cfg.CodecKind()) + "-" + strings.ToLower(cfg.Order)
	}
	return string(cfg.CodecKind())
}

func runLoad(txn store.Transaction, dict *dictionary.Dictionary, cfg *config.Config, file, name string, out io.Writer, logger logr.Logger) error {
	var r io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file) // #nosec G304 - user supplied input file
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	triples, err := ntriples.ReadAll(r)
	if err != nil {
		return err
	}
	if name == "" {
		name = defaultIndexName(cfg)
	}
	meta, err := buildIndex(txn, dict, triples, index.Meta{
		Name:     name,
		Codec:    cfg.CodecKind(),
		Order:    cfg.Order,
		PageSize: cfg.PageSize,
	}, logger)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Indexed %d triples into %q: %d entries on %d pages\n", len(triples), meta.Name, meta.Entries, meta.Pages)
	return err
}

func sampleTriples() []*rdf.Triple {
	alice := rdf.NewNamedNode("http://example.org/alice")
	bob := rdf.NewNamedNode("http://example.org/bob")
	carol := rdf.NewNamedNode("http://example.org/carol")

	knows := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/knows")
	name := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")
	age := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/age")

	return []*rdf.Triple{
		rdf.NewTriple(alice, name, rdf.NewLiteral("Alice")),
		rdf.NewTriple(alice, age, rdf.NewIntegerLiteral(30)),
		rdf.NewTriple(alice, knows, bob),

		rdf.NewTriple(bob, name, rdf.NewLiteral("Bob")),
		rdf.NewTriple(bob, age, rdf.NewLiteralWithDatatype("025", rdf.XSDInteger)),
		rdf.NewTriple(bob, knows, carol),

		rdf.NewTriple(carol, name, rdf.NewLiteralWithLanguage("Carol", "en")),
		rdf.NewTriple(carol, age, rdf.NewIntegerLiteral(28)),
	}
}

// runDemo indexes the sample triples with the interned and the string codec
// in an in-memory store and prints both indices back.
func runDemo(cfg *config.Config, out io.Writer, logger logr.Logger) error {
	s, err := storage.NewInMemoryBadgerStorage(logger)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintln(out, "=== luposidx demo ===")
	triples := sampleTriples()
	return inTransaction(s, true, func(txn store.Transaction, dict *dictionary.Dictionary) error {
		for _, codec := range []index.CodecKind{index.CodecInterned, index.CodecString} {
			meta, err := buildIndex(txn, dict, triples, index.Meta{
				Name:     string(codec) + "-" + strings.ToLower(cfg.Order),
				Codec:    codec,
				Order:    cfg.Order,
				PageSize: cfg.PageSize,
			}, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%s (%s, %d entries, %d pages):\n", meta.Name, meta.Order, meta.Entries, meta.Pages)
			if err := dumpIndex(txn, dict, meta.Name, cfg.Lenient, out, logger); err != nil {
				return err
			}
		}
		fmt.Fprintln(out)
		return listIndexes(txn, out)
	})
}
