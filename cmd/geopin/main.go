// Command geopin prints the grid codes of a coordinate.
//
//	geopin -lat 28.622788 -lon 77.213033 -floor 2
//	geopin -stdin < points.csv
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mohammed-shakir/geopin/internal/core/model"
	"github.com/mohammed-shakir/geopin/internal/encoder"
	h3mapper "github.com/mohammed-shakir/geopin/internal/mapper/h3"
	"github.com/mohammed-shakir/geopin/internal/scheme"
	"github.com/mohammed-shakir/geopin/pkg/pluscode"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("geopin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	lat := fs.Float64("lat", 0, "latitude in decimal degrees")
	lon := fs.Float64("lon", 0, "longitude in decimal degrees")
	floor := fs.Int("floor", 0, "floor index for ULPIN")
	codeLen := fs.Int("len", pluscode.DefaultLength, "Plus Code length")
	res := fs.Int("res", 9, "H3 resolution")
	schemes := fs.String("schemes", strings.Join(scheme.Default, ","), "comma separated schemes")
	fromStdin := fs.Bool("stdin", false, "read lat,lon[,floor] lines from stdin")
	asJSON := fs.Bool("json", false, "print JSON lines instead of a table")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	encs, err := scheme.NewSet(strings.Split(*schemes, ","), scheme.Deps{HexGrid: h3mapper.New()})
	if err != nil {
		fmt.Fprintln(stderr, "geopin:", err)
		return 2
	}
	svc := encoder.New(encs, encoder.Config{DefaultCodeLength: *codeLen})

	var reqs []model.EncodeRequest
	if *fromStdin {
		reqs, err = readRequests(stdin, *floor)
		if err != nil {
			fmt.Fprintln(stderr, "geopin:", err)
			return 2
		}
	} else {
		reqs = []model.EncodeRequest{{Coordinate: model.Coordinate{Lat: *lat, Lon: *lon}, Floor: *floor}}
	}
	for i := range reqs {
		reqs[i].CodeLength = *codeLen
		reqs[i].H3Res = *res
	}

	results := make([]model.EncodeResult, 0, len(reqs))
	for start := 0; start < len(reqs); start += encoder.MaxBatch {
		end := min(start+encoder.MaxBatch, len(reqs))
		out, err := svc.EncodeBatch(context.Background(), reqs[start:end])
		if err != nil {
			fmt.Fprintln(stderr, "geopin:", err)
			return 1
		}
		results = append(results, out...)
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		for _, r := range results {
			if err := enc.Encode(r); err != nil {
				return 1
			}
		}
		return 0
	}
	if err := writeTable(stdout, svc.Schemes(), results); err != nil {
		fmt.Fprintln(stderr, "geopin:", err)
		return 1
	}
	return 0
}

func writeTable(w io.Writer, names []string, results []model.EncodeResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "LAT\tLON\tFLOOR")
	for _, n := range names {
		fmt.Fprint(tw, "\t", strings.ToUpper(n))
	}
	fmt.Fprintln(tw)
	for _, r := range results {
		fmt.Fprintf(tw, "%.6f\t%.6f\t%d", r.Lat, r.Lon, r.Floor)
		for _, n := range names {
			fmt.Fprint(tw, "\t", r.Codes[n])
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
