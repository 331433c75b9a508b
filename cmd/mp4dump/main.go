// Command mp4dump reads an MP4 file, or a byte range of one, and prints its
// box structure with the decoded properties of every box.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	mp4 "github.com/tetsuo/boxview"
	"github.com/tetsuo/boxview/internal/config"
	"github.com/tetsuo/boxview/internal/logging"
	"github.com/tetsuo/boxview/segment"
	"github.com/tetsuo/boxview/track"
)

// Format specifies the output format.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func parseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("unknown format: %s", s)
}

// BoxNode is a box in the tree structure.
type BoxNode struct {
	Type       string         `json:"type"`
	Offset     int            `json:"offset"`
	Size       int            `json:"size"`
	Name       string         `json:"name"`
	Properties []mp4.Property `json:"properties,omitempty"`
	Error      string         `json:"error,omitempty"`
	Children   []*BoxNode     `json:"children,omitempty"`
}

// Output is the JSON document printed with --format=json.
type Output struct {
	Segment string         `json:"segment"`
	Boxes   []*BoxNode     `json:"boxes"`
	Tracks  []*track.Track `json:"tracks,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// byteRange is a --range value, length@offset.
type byteRange struct {
	length, offset int64
	set            bool
}

func (r *byteRange) String() string {
	if !r.set {
		return ""
	}
	return fmt.Sprintf("%d@%d", r.length, r.offset)
}

func (r *byteRange) Set(s string) error {
	l, o, ok := strings.Cut(s, "@")
	if !ok {
		o = "0"
	}
	length, err := strconv.ParseInt(l, 10, 64)
	if err != nil || length <= 0 {
		return fmt.Errorf("invalid range length %q", l)
	}
	offset, err := strconv.ParseInt(o, 10, 64)
	if err != nil || offset < 0 {
		return fmt.Errorf("invalid range offset %q", o)
	}
	r.length, r.offset, r.set = length, offset, true
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mp4dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	formatFlag := fs.String("format", "text", "output format: text, json")
	configFlag := fs.String("config", "", "YAML configuration file")
	levelFlag := fs.String("log-level", "", "log level: debug, info, warn, error")
	tracksFlag := fs.Bool("tracks", false, "print a track summary after the boxes")
	maxRowsFlag := fs.Int("max-rows", 0, "stop printing after this many boxes (0: no limit)")
	contentType := fs.String("content-type", "", "content type hint for segment classification")
	var rng byteRange
	fs.Var(&rng, "range", "read only `length@offset` bytes of the file")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: mp4dump [flags] <file.mp4>\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "format":
			cfg.Format = *formatFlag
		case "log-level":
			cfg.Log.Level = *levelFlag
		case "max-rows":
			cfg.MaxRows = *maxRowsFlag
		}
	})

	format, err := parseFormat(cfg.Format)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	log, err := logging.New(stderr, logging.Options{Format: cfg.Log.Format, Level: level, NoColor: cfg.Log.NoColor})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	path := fs.Arg(0)
	buf, err := readInput(path, rng)
	if err != nil {
		log.Error("reading input", "file", path, "err", err)
		return 1
	}

	kind := segment.Classify(buf, path, *contentType)
	log.Debug("classified", "file", path, "segment", kind.String(), "bytes", len(buf))

	w := mp4.Walker{Logger: log}
	rows, walkErr := w.Walk(buf)
	if walkErr != nil {
		log.Warn("walk stopped", "rows", len(rows), "err", walkErr)
	}

	var tracks []*track.Track
	if *tracksFlag {
		tracks = track.Summarize(rows)
	}
	if cfg.MaxRows > 0 && len(rows) > cfg.MaxRows {
		rows = rows[:cfg.MaxRows]
	}

	switch format {
	case FormatJSON:
		out := Output{Segment: kind.String(), Boxes: buildTree(rows), Tracks: tracks}
		if walkErr != nil {
			out.Error = walkErr.Error()
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			log.Error("encoding JSON", "err", err)
			return 1
		}
	case FormatText:
		fmt.Fprintf(stdout, "segment: %s\n", kind)
		for _, node := range buildTree(rows) {
			printNodeText(stdout, node, 0, cfg.HexDump)
		}
		if len(tracks) > 0 {
			printTracks(stdout, tracks)
		}
		if walkErr != nil {
			fmt.Fprintf(stdout, "error: %v\n", walkErr)
		}
	}

	var se *mp4.StructuralError
	if errors.As(walkErr, &se) {
		return 1
	}
	return 0
}

func readInput(path string, rng byteRange) ([]byte, error) {
	if !rng.set {
		return os.ReadFile(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, rng.length)
	n, err := f.ReadAt(buf, rng.offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("range %s is past the end of the file", rng.String())
	}
	return buf[:n], nil
}

// buildTree nests rows by depth.
func buildTree(rows []mp4.Row) []*BoxNode {
	var roots []*BoxNode
	var stack []*BoxNode
	for _, r := range rows {
		node := &BoxNode{
			Type:       r.Type.String(),
			Offset:     r.Offset,
			Size:       r.Size,
			Name:       r.Properties.BoxName,
			Properties: r.Properties.Properties,
		}
		if r.Err != nil {
			node.Error = r.Err.Error()
		}
		if r.Depth < len(stack) {
			stack = stack[:r.Depth]
		}
		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
		}
		stack = append(stack, node)
	}
	return roots
}

// printNodeText prints a single node in text format
func printNodeText(w io.Writer, node *BoxNode, depth int, hexdump bool) {
	indent := strings.Repeat("  ", depth)

	fmt.Fprintf(w, "%s[%s] %s @%d", indent, node.Type, node.Name, node.Offset)
	if node.Error != "" {
		fmt.Fprintf(w, " (%s)", node.Error)
	}
	fmt.Fprintln(w)

	for _, p := range node.Properties {
		printProperty(w, indent+"    ", p, hexdump)
	}
	for _, child := range node.Children {
		printNodeText(w, child, depth+1, hexdump)
	}
}

func printProperty(w io.Writer, indent string, p mp4.Property, hexdump bool) {
	switch v := p.Value.(type) {
	case mp4.Scalar:
		if v.Kind == mp4.KindHex && !hexdump {
			fmt.Fprintf(w, "%s%s: <%d bytes>\n", indent, p.Key, len(v.Bytes()))
			return
		}
		s := v.String()
		if strings.Contains(s, "\n") {
			fmt.Fprintf(w, "%s%s:\n", indent, p.Key)
			for _, line := range strings.Split(s, "\n") {
				fmt.Fprintf(w, "%s  %s\n", indent, line)
			}
			return
		}
		fmt.Fprintf(w, "%s%s: %s\n", indent, p.Key, s)
	case mp4.Table:
		fmt.Fprintf(w, "%s%s:\n", indent, p.Key)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		if v.Headers != nil {
			fmt.Fprintf(tw, "%s  %s\n", indent, strings.Join(v.Headers, "\t"))
		}
		for _, row := range v.Rows {
			cells := make([]string, len(row))
			for i, c := range row {
				cells[i] = cellText(c, hexdump)
			}
			fmt.Fprintf(tw, "%s  %s\n", indent, strings.Join(cells, "\t"))
		}
		tw.Flush()
	}
}

func cellText(c mp4.Scalar, hexdump bool) string {
	if c.Kind == mp4.KindHex && !hexdump {
		return fmt.Sprintf("<%d bytes>", len(c.Bytes()))
	}
	return strings.ReplaceAll(c.String(), "\n", " ")
}

func printTracks(w io.Writer, tracks []*track.Track) {
	fmt.Fprintln(w, "tracks:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  id\tkind\tcodec\ttimescale\tduration\tlanguage\tsamples\tfragments\tscheme\tdefault_KID")
	for _, t := range tracks {
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%d\t%d\t%s\t%d\t%d\t%s\t%s\n",
			t.ID, t.Kind, t.Codec, t.TimeScale, t.Duration, t.Language,
			t.SampleCount, t.Fragments, t.Scheme, t.DefaultKID)
	}
	tw.Flush()
}
