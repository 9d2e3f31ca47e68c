package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/optcache/contacts"
)

// ListCmd prints the contact list.
type ListCmd struct {
	Refresh bool `help:"Read from the service even if a cached list exists."`
}

func (c *ListCmd) Run(ctx context.Context, g *Globals, kctx *kong.Context) error {
	return g.with(ctx, kctx, func(a *app) error {
		var (
			list contacts.Collection
			err  error
		)
		if c.Refresh {
			list, err = a.client.Refresh(ctx)
		} else {
			list, err = a.client.Ensure(ctx)
		}
		if err != nil {
			return err
		}
		return render(kctx.Stdout, g.Output, list)
	})
}

// AddCmd adds one contact.
type AddCmd struct {
	Name  string `arg:"" help:"Contact name."`
	Phone string `arg:"" help:"Contact phone number."`
}

func (c *AddCmd) Run(ctx context.Context, g *Globals, kctx *kong.Context) error {
	return g.with(ctx, kctx, func(a *app) error {
		if _, err := a.client.Ensure(ctx); err != nil {
			return err
		}
		rec, err := a.client.Add(ctx, contacts.Input{Name: c.Name, Phone: c.Phone})
		if err != nil {
			return err
		}
		return render(kctx.Stdout, g.Output, contacts.Collection{rec})
	})
}

// DeleteCmd deletes one contact.
type DeleteCmd struct {
	ID int64 `arg:"" help:"Contact id."`
}

func (c *DeleteCmd) Run(ctx context.Context, g *Globals, kctx *kong.Context) error {
	return g.with(ctx, kctx, func(a *app) error {
		if _, err := a.client.Ensure(ctx); err != nil {
			return err
		}
		id, err := a.client.Delete(ctx, contacts.ID(c.ID))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(kctx.Stdout, "deleted %d\n", id)
		return err
	})
}

// ImportCmd adds contacts from a YAML file of the form
//
//	contacts:
//	  - name: Ada
//	    phone: "555-0100"
type ImportCmd struct {
	File     string `arg:"" type:"existingfile" help:"YAML file to import."`
	Parallel int    `help:"Concurrent adds." default:"4"`
}

type importFile struct {
	Contacts []contacts.Input `yaml:"contacts"`
}

func (c *ImportCmd) Run(ctx context.Context, g *Globals, kctx *kong.Context) error {
	inputs, err := loadImportFile(c.File)
	if err != nil {
		return err
	}
	return g.with(ctx, kctx, func(a *app) error {
		if _, err := a.client.Ensure(ctx); err != nil {
			return err
		}

		// the first failure cancels the remaining adds, which roll back
		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(max(c.Parallel, 1))
		for i, in := range inputs {
			eg.Go(func() error {
				if _, err := a.client.Add(gctx, in); err != nil {
					return zerr.With(zerr.Wrap(err, "failed to import contact"), "index", i)
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}

		list, err := a.client.Collection(ctx)
		if err != nil {
			return err
		}
		return render(kctx.Stdout, g.Output, list)
	})
}

// loadImportFile rejects unknown keys and invalid entries before anything is
// sent.
func loadImportFile(path string) ([]contacts.Input, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read import file")
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var f importFile
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse import file"), "file", path)
	}
	for i, in := range f.Contacts {
		if err := in.Validate(); err != nil {
			return nil, zerr.With(zerr.With(err, "file", path), "index", i)
		}
	}
	return f.Contacts, nil
}

// with opens the app for one command and always closes it.
func (g *Globals) with(ctx context.Context, kctx *kong.Context, fn func(a *app) error) (err error) {
	a, err := g.open(ctx, kctx.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

func render(w io.Writer, format string, list contacts.Collection) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(list); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tPHONE")
		for _, r := range list {
			id := fmt.Sprint(r.ID)
			if r.IsPlaceholder() {
				id = "pending"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", id, r.Name, r.Phone)
		}
		return tw.Flush()
	}
}
