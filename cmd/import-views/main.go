package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Amund211/viewcache/internal/adapters/database"
	"github.com/Amund211/viewcache/internal/adapters/viewloader"
	"github.com/Amund211/viewcache/internal/domain"
	"golang.org/x/sync/errgroup"
)

type viewFile struct {
	path string
	key  string
}

// Find the views under dir, keyed the way a server with the given root resolves them
func findViews(dir string, root string, extension string) ([]viewFile, error) {
	var views []viewFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if extension != "" && filepath.Ext(path) != extension {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}

		views = append(views, viewFile{path: path, key: filepath.Join(root, rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return views, nil
}

type importOptions struct {
	dir              string
	root             string
	extension        string
	connectionString string
	schema           string
	concurrency      int
}

func run(ctx context.Context, logger *slog.Logger, opts importOptions) error {
	root := opts.root
	if root == "" {
		root = opts.dir
	}

	views, err := findViews(opts.dir, root, opts.extension)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		return fmt.Errorf("no views found in %s", opts.dir)
	}

	db, err := database.NewPostgresDatabase(opts.connectionString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, opts.schema)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	store := viewloader.NewPostgres(db, opts.schema)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for _, view := range views {
		g.Go(func() error {
			content, err := os.ReadFile(view.path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", view.path, err)
			}
			err = store.StoreView(gctx, view.key, string(content))
			if err != nil {
				return fmt.Errorf("failed to store %s: %w", view.key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.InfoContext(ctx, "Import complete", "count", len(views), "schema", opts.schema)
	return nil
}

func main() {
	opts := importOptions{}
	flag.StringVar(&opts.dir, "dir", "views", "local directory to import views from")
	flag.StringVar(&opts.root, "root", "", "views root the server is configured with (defaults to -dir)")
	flag.StringVar(&opts.extension, "ext", domain.DEFAULT_EXTENSION, "only import files with this extension (empty for all files)")
	flag.StringVar(&opts.connectionString, "db", database.LOCAL_CONNECTION_STRING, "postgres connection string")
	flag.StringVar(&opts.schema, "schema", database.GetSchemaName(true), "schema to import views into")
	flag.IntVar(&opts.concurrency, "concurrency", 8, "number of concurrent writes")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(context.Background(), logger, opts); err != nil {
		log.Fatal(err)
	}
}
