package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/artisan/internal/engine"
	"github.com/kalambet/artisan/internal/retrieval"
)

// DefaultMaxContextTokens bounds the catalog context injected into a prompt.
const DefaultMaxContextTokens = 4000

// Instructions is the system message sent with every question.
const Instructions = `Tu es un expert de l'artisanat marocain. Ton rôle est de fournir des informations concises, factuelles et strictement structurées en Markdown, avec une approche directe sans détour.

Règles strictes :
1. Réponds exclusivement aux questions sur l'artisanat marocain
2. Va droit au but sans phrases d'introduction ou de conclusion
3. Utilise uniquement les informations du contexte fourni
4. Structure la réponse pour mettre en avant les informations clés
5. Sois concis, limite-toi aux faits essentiels
6. Si une information est manquante, indique simplement qu'elle n'est pas disponible

Formatage obligatoire :
- Titres principaux en niveau 2 (##)
- Sous-titres en niveau 3 (###) si nécessaire
- Noms de produits en gras
- Caractéristiques en italique (prix, dimensions, etc.)
- Listes à puces pour les détails techniques
- Tableaux pour les comparaisons ou spécifications multiples

Priorités de réponse :
1. Identifie la demande centrale de la question
2. Extrais les informations pertinentes du contexte
3. Structure la réponse par ordre d'importance
4. Élimine tout contenu superflu`

const noContext = "(aucun produit pertinent dans le catalogue)"

// Composer assembles the chat messages for a question from the retrieved
// catalog documents.
type Composer struct {
	MaxContextTokens int
	Instructions     string
}

// New creates a Composer with the given token budget for injected context.
// If maxContextTokens <= 0, the default (4000) is used.
func New(maxContextTokens int) *Composer {
	if maxContextTokens <= 0 {
		maxContextTokens = DefaultMaxContextTokens
	}
	return &Composer{MaxContextTokens: maxContextTokens, Instructions: Instructions}
}

// Compose returns a system message with the instructions and a user message
// holding the context block followed by the question. Documents that do not
// fit the token budget are dropped, lowest score first.
func (c *Composer) Compose(question string, docs []retrieval.ScoredDocument) []engine.Message {
	return []engine.Message{
		{Role: "system", Content: c.Instructions},
		{Role: "user", Content: c.userTurn(question, docs)},
	}
}

func (c *Composer) userTurn(question string, docs []retrieval.ScoredDocument) string {
	tail := "Question: " + strings.TrimSpace(question)

	sorted := make([]retrieval.ScoredDocument, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	remaining := c.MaxContextTokens
	var selected []string
	for _, d := range sorted {
		tokens := EstimateTokens(d.Text)
		if tokens > remaining {
			continue
		}
		selected = append(selected, d.Text)
		remaining -= tokens
	}

	var sb strings.Builder
	sb.WriteString("Contexte:\n")
	if len(selected) == 0 {
		sb.WriteString(noContext)
	} else {
		sb.WriteString(strings.Join(selected, "\n\n"))
	}
	sb.WriteString("\n\n")
	sb.WriteString(tail)
	return sb.String()
}

// FormatSources renders retrieved documents as a short numbered list, used
// by the search tool and command.
func FormatSources(docs []retrieval.ScoredDocument) string {
	var sb strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&sb, "%d. (score %.3f, %s)\n%s\n\n", i+1, d.Score, d.ID, d.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
