package extract

import "fmt"

// maxUtteranceRunes bounds the prompt size; longer user messages are
// truncated before interpolation.
const maxUtteranceRunes = 2000

const promptTemplate = `Analizza questo messaggio: "%s"

Estrai SOLO informazioni per questi campi specifici:
1. location (es: "Roma", "Milano", "Bologna")
2. school_type (es: "Liceo Scientifico", "ITIS Informatica", "Liceo Classico")
3. favorite_subjects (es: "matematica", "fisica", "informatica")
4. hobbies (es: "programmazione", "sport", "musica")
5. primary_goal (es: "lavoro", "università", "formazione pratica")
6. institution_preference (es: "pubblico", "privato")
7. willing_to_relocate (TRUE/FALSE per "disponibile a trasferirsi")

Formato di risposta SOLO JSON:
[
  {"field_name": "nome_campo", "value": "valore", "confidence": "alta"}
]

Se non trovi info, rispondi con: []

Esempi:
- "Abito a Milano" → [{"field_name": "location", "value": "Milano", "confidence": "alta"}]
- "Studio al liceo" → [{"field_name": "school_type", "value": "Liceo", "confidence": "media"}]
- "Mi piace la matematica" → [{"field_name": "favorite_subjects", "value": "matematica", "confidence": "alta"}]`

// BuildPrompt renders the extraction prompt for one user utterance.
func BuildPrompt(utterance string) string {
	runes := []rune(utterance)
	if len(runes) > maxUtteranceRunes {
		utterance = string(runes[:maxUtteranceRunes])
	}
	return fmt.Sprintf(promptTemplate, utterance)
}
