package chat

import (
	"context"
	"fmt"
	"strings"
)

const helpText = `Comandi:
  help    mostra questo aiuto
  clear   pulisce lo schermo
  ingest  rilegge e reindicizza il profilo
  diag    verifica motore, modelli e indice
  ctx     mostra l'ultimo contesto usato
Qualsiasi altro testo è una domanda.`

// Handle dispatches a line typed in the chat input: one of the commands, or a
// question passed to Submit.
func (s *Session) Handle(ctx context.Context, input string, out Output) error {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "":
		return nil
	case "help":
		out.Notice(helpText)
	case "clear":
		out.Clear()
	case "ingest":
		return s.ingest(ctx, out)
	case "diag":
		out.Notice(s.diagnose(ctx))
	case "ctx":
		out.Notice(s.describeContext())
	default:
		return s.Submit(ctx, input, out)
	}
	return nil
}

func (s *Session) ingest(ctx context.Context, out Output) error {
	if s.retrieval == nil {
		out.Notice("Indice non configurato.")
		return nil
	}
	stats, err := s.retrieval.Ingest(ctx)
	if err != nil {
		out.Notice("Ingest fallito: " + err.Error())
		return err
	}
	out.Notice(fmt.Sprintf("Profilo indicizzato: %d blocchi, %d termini, %d sezioni.", stats.Chunks, stats.Terms, len(stats.Sections)))
	return nil
}

func (s *Session) diagnose(ctx context.Context) string {
	var b strings.Builder
	if s.resolver != nil {
		b.WriteString(s.resolver.Diagnose(ctx).String())
		b.WriteString("\n")
	} else {
		b.WriteString("engine: not configured\n")
	}
	if s.remote != nil {
		fmt.Fprintf(&b, "remote server: %s\n", s.remote.Name())
	}
	if s.retrieval != nil {
		st := s.retrieval.Stats()
		source := st.Source
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(&b, "index: %d chunks, %d terms, sections [%s], source %s", st.Chunks, st.Terms, strings.Join(st.Sections, ", "), source)
		if st.FromCache {
			b.WriteString(" (cached)")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Session) describeContext() string {
	snippets := s.LastContext()
	if len(snippets) == 0 {
		return "Nessun contesto assemblato."
	}
	var b strings.Builder
	for i, sn := range snippets {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, sn)
	}
	return strings.TrimRight(b.String(), "\n")
}
