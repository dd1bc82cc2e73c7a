package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Amund211/viewcache/internal/adapters/renderer"
	"github.com/Amund211/viewcache/internal/app"
	"github.com/Amund211/viewcache/internal/domain"
	"github.com/natefinch/atomic"
)

func parseParams(args []string) (domain.Params, error) {
	params := make(domain.Params, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid param %q, expected name=value", arg)
		}
		params[name] = value
	}
	return params, nil
}

func main() {
	root := flag.String("root", "views", "directory views are resolved relative to")
	extension := flag.String("ext", domain.DEFAULT_EXTENSION, "extension appended to views without one")
	output := flag.String("o", "", "write the rendered view to this file instead of stdout")
	textMode := flag.Bool("text", false, "render without html escaping")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <view> [name=value...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	params, err := parseParams(flag.Args()[1:])
	if err != nil {
		log.Fatal(err)
	}

	opts := []app.Option{app.WithDefaultExtension(*extension)}
	if *textMode {
		opts = append(opts, app.WithRendererOption(renderer.ModeOption, renderer.ModeText))
	}

	views, err := app.NewViews(*root, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize views: %v", err)
	}

	result, err := views.Render(context.Background(), flag.Arg(0), params)
	if err != nil {
		log.Fatalf("Failed to render %s: %v", views.Resolve(flag.Arg(0)), err)
	}

	if *output == "" {
		fmt.Print(result.Output)
		return
	}

	err = atomic.WriteFile(*output, strings.NewReader(result.Output))
	if err != nil {
		log.Fatalf("Failed to write %s: %v", *output, err)
	}
}
