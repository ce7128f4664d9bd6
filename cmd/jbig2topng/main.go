// Command jbig2topng decodes a JBIG2 file (or an embedded PDF stream plus
// optional globals) and writes each page as a PNG.
package main

import (
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	jbig2 "github.com/inkbound/jbig2/pkg/jbig2"
)

func main() {
	input := flag.String("input", "", "input JBIG2 file")
	globals := flag.String("globals", "", "optional globals stream for embedded (PDF) input")
	output := flag.String("output", "", "output PNG file (default: input name with .png; multi-page inputs get -pN suffixes)")
	flag.Parse()

	if *input == "" {
		log.Fatal("jbig2topng: -input is required")
	}
	data, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("jbig2topng: %v", err)
	}

	opts := jbig2.Options{}
	if jbig2.Sniff(data) {
		if *globals != "" {
			log.Fatal("jbig2topng: -globals only applies to embedded streams")
		}
		opts.Data = data
	} else {
		var chunks [][]byte
		if *globals != "" {
			g, err := os.ReadFile(*globals)
			if err != nil {
				log.Fatalf("jbig2topng: %v", err)
			}
			chunks = append(chunks, g)
		}
		chunks = append(chunks, data)
		opts.Embedded = chunks
	}

	dec, err := jbig2.NewDecoder(opts)
	if err != nil {
		log.Fatalf("jbig2topng: %v", err)
	}

	pages := dec.Pages()
	base := *output
	if base == "" {
		base = strings.TrimSuffix(*input, filepath.Ext(*input)) + ".png"
	}

	for _, page := range pages {
		frame, err := dec.DecodePage(page)
		if err != nil {
			log.Fatalf("jbig2topng: page %d: %v", page, err)
		}
		name := base
		if len(pages) > 1 {
			name = strings.TrimSuffix(base, ".png") + fmt.Sprintf("-p%d.png", page)
		}
		out, err := os.Create(name)
		if err != nil {
			log.Fatalf("jbig2topng: %v", err)
		}
		if err := png.Encode(out, frame.Image()); err != nil {
			out.Close()
			log.Fatalf("jbig2topng: %v", err)
		}
		if err := out.Close(); err != nil {
			log.Fatalf("jbig2topng: %v", err)
		}
		fmt.Printf("%s: %dx%d\n", name, frame.Width(), frame.Height())
	}

	for _, w := range dec.Warnings() {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
}
