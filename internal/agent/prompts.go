package agent

import (
	"fmt"
	"strings"

	"github.com/davoli/bussola/internal/profile"
	"github.com/davoli/bussola/internal/search"
)

// WelcomeMessage opens every new conversation.
const WelcomeMessage = "Ciao! Sono il tuo orientatore. Dove vivi?"

// UnavailableMessage is returned for every turn when the agent was built
// without a completion backend (missing API key).
const UnavailableMessage = "Il servizio di orientamento non è al momento disponibile. Riprova più tardi."

// recommendationFallback is the deterministic reply when recommendation
// generation fails.
const recommendationFallback = "Grazie per le informazioni! Analizzo il tuo profilo."

const questionPromptTemplate = `Sei un orientatore universitario.

Profilo attuale:
%s

BASANDOTI sull'ultimo messaggio, fai UNA sola domanda per ottenere l'informazione più importante che manca.

La tua risposta deve essere SOLO la domanda.`

const recommendationPromptTemplate = `Sei un orientatore universitario.

Profilo studente:
%s
%s
Dai un breve riepilogo e suggerisci 2-3 aree di studio o formazione che potrebbero interessare.`

func questionPrompt(p *profile.Profile) string {
	return fmt.Sprintf(questionPromptTemplate, p.Context())
}

func recommendationPrompt(p *profile.Profile, enrichment *search.Results) string {
	return fmt.Sprintf(recommendationPromptTemplate, p.Context(), enrichmentContext(enrichment))
}

// enrichmentContext renders up to 2 university and 2 ITS candidates for
// injection into the recommendation prompt. Empty when nothing was found.
func enrichmentContext(res *search.Results) string {
	if res == nil {
		return ""
	}
	var lines []string
	for i, c := range res.UniversityCourses.Courses {
		if i >= 2 {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s presso %s (%s)", c.Name, c.University, c.URL))
	}
	for i, c := range res.ITSCourses.Courses {
		if i >= 2 {
			break
		}
		line := fmt.Sprintf("- ITS: %s (%s)", c.Name, c.URL)
		if c.Duration != "" {
			line = fmt.Sprintf("- ITS: %s, %s (%s)", c.Name, c.Duration, c.URL)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return ""
	}
	return "\nCorsi reali trovati sul web:\n" + strings.Join(lines, "\n") + "\n"
}

// fallbackQuestion picks the fixed question for the most important unset
// critical field, in tier order. Never fails.
func fallbackQuestion(p *profile.Profile) string {
	switch {
	case p.Location == "":
		return "Dove vivi?"
	case p.SchoolType == "":
		return "Che scuola frequenti?"
	case len(p.FavoriteSubjects) == 0:
		return "Quali materie ti piacciono di più?"
	default:
		return "Cosa ti piacerebbe fare dopo il diploma?"
	}
}
