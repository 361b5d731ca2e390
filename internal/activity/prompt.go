// SPDX-License-Identifier: MIT
package activity

import (
	"fmt"
	"sort"
	"strings"
)

// BuildSummaryPrompt renders the day's compacted sessions and metrics into
// the German time-tracking prompt. The model answers with a strict JSON
// object of summary text plus labeled blocks.
func BuildSummaryPrompt(sessions []*Session, metrics DayMetrics) string {
	compact := CompactSessions(sessions)

	var sessionLines []string
	for _, s := range compact {
		titles := "keine Titel"
		if len(s.WindowTitles) > 0 {
			titles = strings.Join(capSlice(s.WindowTitles, 5), ", ")
		}
		line := fmt.Sprintf("- %s-%s [%s] %s (%dmin): %s",
			s.Start.Format("15:04"), s.End.Format("15:04"),
			s.Category, s.AppClass, s.DurationSeconds()/60, titles)
		if len(s.BrowserDomains) > 0 {
			line += " | Domains: " + strings.Join(capSlice(s.BrowserDomains, 5), ", ")
		}
		sessionLines = append(sessionLines, line)
	}

	type catEntry struct {
		name    string
		seconds int
	}
	cats := make([]catEntry, 0, len(metrics.CategorySeconds))
	for name, secs := range metrics.CategorySeconds {
		cats = append(cats, catEntry{name, secs})
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].seconds != cats[j].seconds {
			return cats[i].seconds > cats[j].seconds
		}
		return cats[i].name < cats[j].name
	})
	var catLines []string
	for _, c := range cats {
		catLines = append(catLines, fmt.Sprintf("  %s: %dh %dm", c.name, c.seconds/3600, (c.seconds%3600)/60))
	}

	return fmt.Sprintf(`Du bist ein Zeiterfassungs-Assistent. Erstelle aus den folgenden Rohdaten eine professionelle Zeiterfassung fuer den Tag.

## Rohdaten (automatisch erfasste Sessions):
%s

## Metriken:
- Aktive Zeit: %dh %dm
- Pausen: %d (%dmin gesamt)

## Kategorien:
%s

## Regeln:
1. **Gruppiere nach TAETIGKEIT, nicht nach App-Kategorie.** "E-Mails pruefen" ist ein Block, "Am Projekt X arbeiten" ist ein Block, "Amazon-Recherche" ist ein Block — auch wenn alles im Browser war.
2. **Keine Ueberlappungen.** Jeder Block beginnt nach dem Ende des vorherigen.
3. **Jeder Block mindestens 15 Minuten.** Sehr kurze Taetigkeiten (<5min) zum passenden Nachbar-Block dazunehmen.
4. **duration_minutes**: Durch 15 teilbar. Auf naechstes 15er-Vielfaches runden (23min->30, 49min->45, 8min->15).
5. **Uhrzeiten minutengenau** (z.B. "06:46-07:12").
6. **Pausen >15min** als eigenen Block mit category "pause".
7. **Beschreibung**: Konkret was getan wurde. Nenne besuchte Websites, bearbeitete Projekte, konkrete Tools.
8. **Typisch 4-10 Bloecke pro Tag.** Nicht alles in einen Block packen, aber auch nicht jede Minute einzeln.

## Beispiel:
Aus diesen Sessions:
  06:46-06:48 firefox (ScreenDiary, NI-Toolbox)
  06:48-06:51 evolution (E-Mails)
  06:51-07:03 firefox (GitHub, Telegram Web, NI-Toolbox)
  07:03-07:14 firefox (Amazon.de)
  07:14-07:25 codium (screendiary/app.py)
  07:25-07:32 konsole (git, npm)

Werden diese Bloecke (gruppiert nach Taetigkeit):
  06:46-06:48 "Tagesbeginn" — ScreenDiary und NI-Toolbox geoeffnet (15min)
  06:48-06:51 "E-Mails" — E-Mail-Pruefung in Evolution (15min)
  06:51-07:03 "Web: interne Tools" — GitHub PRs, Telegram Nachrichten, NI-Toolbox (15min)
  07:03-07:14 "Recherche Amazon" — Produktrecherche auf Amazon.de (15min)
  07:14-07:32 "ScreenDiary Entwicklung" — Coding in codium (app.py), Terminal: git, npm build (30min)

Erstelle eine JSON-Antwort:
{
  "summary": "Kurze Zusammenfassung des Tages (2-3 Saetze, Deutsch).",
  "blocks": [
    {
      "time_range": "07:14-07:32",
      "duration_minutes": 30,
      "label": "ScreenDiary Entwicklung",
      "description": "Coding in codium an app.py, danach git-Befehle und npm build im Terminal.",
      "category": "coding"
    }
  ]
}

Antworte NUR mit dem JSON, kein anderer Text.`,
		strings.Join(sessionLines, "\n"),
		metrics.TotalActiveSeconds/3600, (metrics.TotalActiveSeconds%3600)/60,
		metrics.BreakCount, metrics.TotalBreakSeconds/60,
		strings.Join(catLines, "\n"))
}

// Greeting picks the German salutation for an hour of day.
func Greeting(hour int) string {
	switch {
	case hour < 12:
		return "Guten Morgen"
	case hour < 17:
		return "Guten Tag"
	default:
		return "Guten Abend"
	}
}

// BuildMOTDPrompt renders the message-of-the-day prompt from the cached day
// summary text.
func BuildMOTDPrompt(summaryText, date string, hour int) string {
	greeting := Greeting(hour)
	context := summaryText
	if context == "" {
		context = "Keine Zusammenfassung vorhanden."
	}
	return fmt.Sprintf(`Erstelle eine kurze, motivierende Tagesnachricht basierend auf der Zusammenfassung des Arbeitstages.

Datum: %s
Tageszeit-Gruss: %s

## Zusammenfassung des Tages:
%s

## Regeln:
- Maximal 1-2 Saetze
- Beginne mit "%s!"
- Beziehe dich inhaltlich auf die Taetigkeiten (z.B. Projekte, Themen), NICHT auf Uhrzeiten oder Dauern
- Nenne KEINE Zeiten, Stunden, Minuten oder Dauern
- Freundlich, knapp, motivierend
- Auf Deutsch

Erstelle eine JSON-Antwort:
{
  "motd": "Die Tagesnachricht hier"
}

Antworte NUR mit dem JSON.`, date, greeting, context, greeting)
}

func capSlice(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
