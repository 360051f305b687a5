package classification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/hebrew"
	"github.com/hebrew-ms/backend/internal/llm"
	"github.com/hebrew-ms/backend/internal/metrics"
	"github.com/hebrew-ms/backend/internal/models"
	"github.com/hebrew-ms/backend/pkg/utils"
)

// Completer is the chat endpoint the AI classifier talks to.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

type AIOptions struct {
	MaxWorkers   int
	ChunkSize    int
	MaxTextRunes int
}

var DefaultAIOptions = AIOptions{MaxWorkers: 8, ChunkSize: 8, MaxTextRunes: 4000}

type AIClassifier struct {
	completer Completer
	cache     ReplyCache
	opts      AIOptions
	logger    *zap.Logger
}

// NewAIClassifier builds a classifier over completer. cache may be nil.
func NewAIClassifier(completer Completer, opts AIOptions, cache ReplyCache, logger *zap.Logger) *AIClassifier {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultAIOptions.MaxWorkers
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultAIOptions.ChunkSize
	}
	if opts.MaxTextRunes <= 0 {
		opts.MaxTextRunes = DefaultAIOptions.MaxTextRunes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIClassifier{completer: completer, cache: cache, opts: opts, logger: logger}
}

var typeOrder = []models.EntityType{models.EntityDate, models.EntityLocation, models.EntityPerson}

// Classify labels entities against text. Every returned entity comes from the input,
// carries a label from its type's vocabulary and is in input order. Entities the
// endpoint could not label are left out.
func (a *AIClassifier) Classify(ctx context.Context, text string, entities []models.ExtractedEntity) []models.ClassifiedEntity {
	if len(entities) == 0 {
		return nil
	}

	byType := map[models.EntityType][]string{}
	seen := map[models.EntityType]map[string]struct{}{}
	for _, e := range entities {
		if seen[e.Type()] == nil {
			seen[e.Type()] = map[string]struct{}{}
		}
		if _, dup := seen[e.Type()][e.Value()]; dup {
			continue
		}
		seen[e.Type()][e.Value()] = struct{}{}
		byType[e.Type()] = append(byType[e.Type()], e.Value())
	}

	labelsByType := map[models.EntityType]map[string]string{}
	for _, t := range typeOrder {
		if values := byType[t]; len(values) > 0 {
			labelsByType[t] = a.classifyValues(ctx, text, values, t)
		}
	}

	var out []models.ClassifiedEntity
	for _, e := range entities {
		label, ok := labelsByType[e.Type()][e.Value()]
		if !ok {
			continue
		}
		out = append(out, models.ClassifiedEntity{
			Entity:  e,
			Label:   label,
			Mapping: OntologyMapping(label),
			Source:  models.SourceAI,
		})
	}
	return out
}

func (a *AIClassifier) classifyValues(ctx context.Context, text string, values []string, t models.EntityType) map[string]string {
	labels := LabelsFor(t)
	if len(labels) == 0 {
		return nil
	}
	excerpt := hebrew.Head(text, a.opts.MaxTextRunes)

	p := pool.NewWithResults[map[string]string]().WithMaxGoroutines(a.opts.MaxWorkers)
	for _, chunk := range chunks(values, a.opts.ChunkSize) {
		chunk := chunk
		p.Go(func() map[string]string {
			return a.classifyChunk(ctx, excerpt, chunk, t, labels)
		})
	}

	merged := map[string]string{}
	for _, r := range p.Wait() {
		for k, v := range r {
			merged[k] = v
		}
	}
	return merged
}

type chunkPrompt struct {
	Text        string   `json:"text"`
	Items       []string `json:"items"`
	ItemKind    string   `json:"item_kind"`
	Labels      []string `json:"labels"`
	Instruction string   `json:"instruction"`
}

// classifyChunk returns an empty mapping when the call fails; failures never propagate.
func (a *AIClassifier) classifyChunk(ctx context.Context, text string, items []string, t models.EntityType, labels []string) map[string]string {
	kind := string(t)
	key := utils.HashParts(text, strings.Join(items, "\x1e"), kind, strings.Join(labels, "\x1e"))

	if a.cache != nil {
		cached, ok, err := a.cache.GetReply(ctx, key)
		if err != nil {
			a.logger.Warn("Failed to read AI reply cache", zap.Error(err))
		}
		if ok {
			metrics.CacheHits.WithLabelValues("ai_reply").Inc()
			return cached
		}
		metrics.CacheMisses.WithLabelValues("ai_reply").Inc()
	}

	prompt, err := encodePrompt(chunkPrompt{
		Text:        text,
		Items:       items,
		ItemKind:    kind,
		Labels:      labels,
		Instruction: instruction(kind),
	})
	if err != nil {
		a.logger.Error("Failed to encode classification prompt", zap.Error(err))
		return map[string]string{}
	}

	resp, err := a.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		JSONObject:   true,
	})
	if err != nil {
		metrics.AICalls.WithLabelValues("failed").Inc()
		a.logger.Warn("AI classification chunk failed",
			zap.String("item_kind", kind),
			zap.Int("items", len(items)),
			zap.Error(err),
		)
		return map[string]string{}
	}
	metrics.AICalls.WithLabelValues("ok").Inc()

	reply := parseReply(resp.Content, items, t)
	if a.cache != nil {
		if err := a.cache.SetReply(ctx, key, reply); err != nil {
			a.logger.Warn("Failed to write AI reply cache", zap.Error(err))
		}
	}
	return reply
}

// parseReply keeps only requested items whose label is in the type's vocabulary.
func parseReply(content string, items []string, t models.EntityType) map[string]string {
	requested := make(map[string]struct{}, len(items))
	for _, it := range items {
		requested[it] = struct{}{}
	}

	out := map[string]string{}
	gjson.Parse(content).ForEach(func(k, v gjson.Result) bool {
		if v.Type != gjson.String {
			return true
		}
		if _, ok := requested[k.String()]; !ok {
			return true
		}
		if label := v.String(); IsAllowed(t, label) {
			out[k.String()] = label
		}
		return true
	})
	return out
}

func encodePrompt(p chunkPrompt) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return "", fmt.Errorf("failed to marshal prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func chunks(items []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(items); i += size {
		out = append(out, items[i:min(i+size, len(items))])
	}
	return out
}

func instruction(kind string) string {
	return fmt.Sprintf("Classify each %s using Hebrew context clues from the text. "+
		"Match to ONE label from 'labels' list. Return JSON: {\"item\": \"label\"}", kind)
}

const systemPrompt = `You are a Hebrew manuscript expert. Classify entities by their ROLE using Hebrew context clues.
Return ONLY valid JSON: {"entity": "label", ...}

Ontology levels (CIDOC-CRM / LRMoo):
1. F1 Work: the intellectual conception.
2. F2 Expression: a specific text version such as a translation or commentary.
3. F4 Manifestation singleton: the physical manuscript.

Dates:
- Work creation is the original composition in the author's lifetime.
- Expression creation covers translations, commentaries and versions.
- Manuscript production is the physical copying by a scribe: נכתב, הועתק, נשלם.
- Printing: נדפס. Sale or transfer: נמכר, נרכש, נמסר, קנה.
- Colophon date: stated in the colophon itself (קולופון, נשלם ספר).
- Annotation: הערה, רשם, הוסיף. Birth and death: נולד, נפטר, מת.

Locations are labelled by the EVENT they take part in, never as a "colophon place":
- production place (E12_Production, P7_took_place_at): נכתב ב, הועתק ב, נשלם ב, נעשה ב. Example: 'נשלם בקנדיה' is production place.
- published in (F30_Manifestation_Creation): נדפס ב, הודפס ב, דפוס.
- resided in (P74_has_current_or_former_residence): גר ב, ישב ב, דר ב, מושבו ב.
- born in: נולד ב, יליד. died in: נפטר ב, מת ב. worked in: פעל ב, עבד ב.
- preserved in (P55_has_current_location): נמצא ב, שמור ב, ספריית, באוסף.
- transferred to (E10_Transfer_of_Custody): הועבר ל, נמכר ל.
- mentioned place only when no event relationship can be identified.

Persons reaching you had no clear Hebrew role marker. Read the whole sentence, the position of
the name (title, colophon, ownership note), family relations ("בן" usually identifies rather than
assigns a role) and quoted sources. When the role is unclear use "mentioned person".

Use the exact label text from the provided list and return a JSON object mapping each item to its label.`
