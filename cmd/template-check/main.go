// template-check validates every template declared in the manifest files
// under the template directory: the asset must exist, decode as PNG, and
// have nonzero dimensions. Run it after capturing or updating reference
// imagery, before pointing the automation at it.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/giapdang/autocapcut/pkg/templates"
)

func main() {
	templateDir := flag.String("templates", "templates", "template asset directory")
	flag.Parse()

	store := templates.NewStore(*templateDir)
	if err := store.LoadManifestDir(*templateDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load manifests from %s: %v\n", *templateDir, err)
		os.Exit(1)
	}

	defs := store.Definitions()
	if len(defs) == 0 {
		fmt.Fprintf(os.Stderr, "no templates declared under %s\n", *templateDir)
		os.Exit(1)
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Key() < defs[j].Key() })

	failures := 0
	for _, def := range defs {
		v, err := store.Validate(def.Name, def.Category, def.Version)
		if err != nil {
			failures++
			fmt.Printf("FAIL  %-40s %v\n", def.Key(), err)
			continue
		}
		if !v.OK() {
			failures++
			fmt.Printf("FAIL  %-40s decodable=%v valid_dimensions=%v\n", def.Key(), v.Decodable, v.ValidDimensions)
			continue
		}
		fmt.Printf("ok    %s\n", def.Key())
	}

	fmt.Printf("\n%d templates checked, %d invalid\n", len(defs), failures)
	if failures > 0 {
		os.Exit(1)
	}
}
