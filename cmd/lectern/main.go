package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lectern-app/lectern/internal/ai"
	"github.com/lectern-app/lectern/internal/bus"
	"github.com/lectern-app/lectern/internal/doc"
	"github.com/lectern-app/lectern/internal/geom"
	"github.com/lectern-app/lectern/internal/store"
	"github.com/lectern-app/lectern/internal/tui"
)

func main() {
	demo := flag.Bool("demo", false, "open a built-in sample document instead of asking for one")
	statePath := flag.String("state", "", "override the state database path (default: user cache dir)")
	noStore := flag.Bool("no-store", false, "run without persisting highlights, translations, or sessions")
	noAltScreen := flag.Bool("no-alt-screen", false, "disable the alternate screen buffer")
	dpr := flag.Float64("dpr", 1, "device pixel ratio for the raster layer")
	llmModel := flag.String("llm-model", "", "override the default Ollama model (ministral-3:latest)")
	llmEndpoint := flag.String("llm-endpoint", "", "custom Ollama host (eg. http://localhost:11434)")
	lang := flag.String("lang", "", "target language for translations (default: English)")
	flag.Parse()

	aiClient, err := ai.NewFromEnv(ai.Config{
		Model:    *llmModel,
		Endpoint: *llmEndpoint,
		Language: *lang,
	})
	if err != nil {
		fmt.Println("translation disabled:", err)
	}

	var st *store.Store
	if !*noStore {
		path := *statePath
		if path == "" {
			if path, err = store.DefaultPath(); err != nil {
				fmt.Println("state disabled:", err)
			}
		}
		if path != "" {
			if st, err = store.Open(path); err != nil {
				fmt.Println("state disabled:", err)
				st = nil
			} else {
				defer st.Close()
			}
		}
	}

	config := tui.Config{
		AI:    aiClient,
		Store: st,
		Bus:   bus.NewMemory(),
		DPR:   *dpr,
	}
	if *demo {
		config.Demo = demoDocument()
	}

	opts := []tea.ProgramOption{}
	if !*noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(tui.New(config), opts...)

	if _, err := program.Run(); err != nil {
		fmt.Println("program error:", err)
		os.Exit(1)
	}
}

// demoDocument is a small synthetic paper used by --demo and the
// integration tests, so the reader can be exercised without a PDF.
func demoDocument() doc.Document {
	d := doc.NewMemory("demo-paper", 4, geom.Size{W: 612, H: 792})
	d.Runs[1] = []doc.TextRun{
		{Text: "Attention Is Not All You Need", Origin: geom.Point{X: 72, Y: 90}, FontSize: 18, Width: 320},
		{Text: "We revisit the role of recurrence in sequence models.", Origin: geom.Point{X: 72, Y: 140}, FontSize: 11, Width: 380},
		{Text: "Our experiments cover three benchmark corpora.", Origin: geom.Point{X: 72, Y: 160}, FontSize: 11, Width: 360},
	}
	d.Runs[2] = []doc.TextRun{
		{Text: "2. Method", Origin: geom.Point{X: 72, Y: 80}, FontSize: 14, Width: 90},
		{Text: "The encoder consumes overlapping windows of tokens.", Origin: geom.Point{X: 72, Y: 120}, FontSize: 11, Width: 380},
	}
	d.Paras[1] = []doc.Paragraph{
		{ID: "title", Page: 1, BBox: geom.Rect{X: 60, Y: 70, W: 360, H: 50}},
		{ID: "abstract", Page: 1, BBox: geom.Rect{X: 60, Y: 130, W: 400, H: 60}},
	}
	d.Paras[2] = []doc.Paragraph{
		{ID: "method", Page: 2, BBox: geom.Rect{X: 60, Y: 70, W: 400, H: 80}},
	}
	d.NamedDests["method"] = 2
	d.Links[1] = []doc.Annotation{
		{Rect: geom.Rect{X: 72, Y: 180, W: 120, H: 14}, Kind: doc.LinkNamed, Name: "method"},
	}
	return d
}
