// Package fraud implements the rule-based fraud detection engine: numeric
// application checks, document content checks, cross-document comparisons,
// and the score aggregation on top of the resulting flags.
package fraud

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/credora-labs/credora/internal/domain"
)

// CustomRuleEvaluator supplies extra flags from operator-configured rules.
// Kept as a local interface so the engine does not depend on the rule
// engine's implementation.
type CustomRuleEvaluator interface {
	EvaluateFlags(ctx context.Context, facts *domain.ApplicationFacts) []domain.RuleFlag
}

// Engine runs the built-in fraud checks. Photo analysis and custom rules
// are optional collaborators; nil disables them.
type Engine struct {
	photo  domain.PhotoAnalyzer
	custom CustomRuleEvaluator
}

// NewEngine creates a fraud engine. Both collaborators may be nil.
func NewEngine(photo domain.PhotoAnalyzer, custom CustomRuleEvaluator) *Engine {
	return &Engine{photo: photo, custom: custom}
}

// Expected keywords per proof type. A proof document containing none of its
// expected keywords is flagged as unexpected content.
var expectedKeywords = map[domain.DocumentType][]string{
	domain.DocIdentityProof: {
		"aadhar", "aadhaar", "passport", "license", "licence", "pan",
		"govt of india", "government of india",
	},
	domain.DocAddressProof: {
		"address", "pin code", "pincode", "road", "street", "city", "state",
	},
	domain.DocIncomeProof: {
		"salary", "income", "ctc", "gross", "net pay", "payslip", "pay slip",
		"annual income", "form 16", "itr",
	},
}

// Marksheets are the most common wrong upload; they get their own flag.
var marksheetKeywords = []string{
	"marksheet", "mark sheet", "semester", "university", "examination",
	"exam", "cgpa", "sgpa",
}

var incomeFigurePattern = regexp.MustCompile(`\d[\d,]{4,}`)

// DetectFlags runs every built-in check plus any custom rules and returns
// the deduplicated flag list in detection order.
func (e *Engine) DetectFlags(ctx context.Context, facts *domain.ApplicationFacts, docs []*domain.DocumentRecord) []string {
	var flags []string
	texts := documentTexts(docs)

	flags = append(flags, numericFlags(facts)...)
	flags = append(flags, e.documentFlags(ctx, facts, docs, texts)...)
	flags = append(flags, crossDocumentFlags(texts)...)
	flags = append(flags, incomeCrossCheckFlags(facts, texts[domain.DocIncomeProof])...)

	if e.custom != nil {
		for _, hit := range e.custom.EvaluateFlags(ctx, facts) {
			flags = append(flags, hit.Code)
		}
	}

	return dedupe(flags)
}

func numericFlags(facts *domain.ApplicationFacts) []string {
	var flags []string

	if facts.IncomeAnnum > 0 && facts.LoanAmount > facts.IncomeAnnum*10 {
		flags = append(flags, "EXCESSIVE_LOAN_AMOUNT")
	}
	if facts.CibilScore < 550 && facts.LoanAmount > 500_000 {
		flags = append(flags, "LOW_CREDIT_HIGH_LOAN")
	}
	if facts.IncomeAnnum > 50_000_000 {
		flags = append(flags, "UNREALISTIC_INCOME")
	}
	if facts.LoanTermYears > 0 && facts.IncomeAnnum > 0 {
		monthlyPayment := facts.LoanAmount / float64(facts.LoanTermYears*12)
		monthlyIncome := facts.IncomeAnnum / 12
		if monthlyPayment > 0.7*monthlyIncome {
			flags = append(flags, "HIGH_PAYMENT_TO_INCOME")
		}
	}

	return flags
}

// documentTexts lowercases the extracted text per document type. A later
// upload of the same type replaces the earlier one.
func documentTexts(docs []*domain.DocumentRecord) map[domain.DocumentType]string {
	texts := make(map[domain.DocumentType]string, len(docs))
	for _, doc := range docs {
		texts[doc.Type] = strings.ToLower(doc.ExtractedText)
	}
	return texts
}

// documentFlags checks each required document: presence, OCR quality, the
// identity name cross-check, and content classification. The checks are
// independent: a weak-OCR document still goes through the content and
// identity checks.
func (e *Engine) documentFlags(ctx context.Context, facts *domain.ApplicationFacts, docs []*domain.DocumentRecord, texts map[domain.DocumentType]string) []string {
	var flags []string
	for _, docType := range domain.RequiredDocumentTypes() {
		text, ok := texts[docType]
		if !ok {
			flags = append(flags, "MISSING_"+strings.ToUpper(string(docType)))
			continue
		}
		if len(text) < 40 {
			flags = append(flags, "DOC_OCR_WEAK_"+strings.ToUpper(string(docType)))
		}
	}

	flags = append(flags, nameMismatchFlags(facts.FullName, texts[domain.DocIdentityProof])...)

	for _, docType := range domain.RequiredDocumentTypes() {
		text, ok := texts[docType]
		if !ok {
			continue
		}
		flags = append(flags, contentFlags(docType, text)...)
	}

	if e.photo != nil {
		for _, doc := range docs {
			if doc.Type == domain.DocPhoto {
				flags = append(flags, e.photo.CheckPhotoQuality(ctx, doc.FilePath)...)
				break
			}
		}
	}

	return flags
}

func contentFlags(docType domain.DocumentType, text string) []string {
	expected := expectedKeywords[docType]
	if len(expected) == 0 {
		return nil
	}

	for _, kw := range expected {
		if strings.Contains(text, kw) {
			return nil
		}
	}

	for _, kw := range marksheetKeywords {
		if strings.Contains(text, kw) {
			return []string{"POSSIBLE_MARKSHEET_IN_" + strings.ToUpper(string(docType))}
		}
	}
	return []string{"UNEXPECTED_CONTENT_IN_" + strings.ToUpper(string(docType))}
}

// nameMismatchFlags checks that each significant token of the applicant's
// name appears in the identity document text.
func nameMismatchFlags(fullName, identityText string) []string {
	name := strings.ToLower(strings.TrimSpace(fullName))
	if name == "" || identityText == "" {
		return nil
	}

	for _, token := range strings.Fields(name) {
		if len(token) <= 2 {
			continue
		}
		if !strings.Contains(identityText, token) {
			return []string{"IDENTITY_NAME_MISMATCH"}
		}
	}
	return nil
}

// crossDocumentFlags detects the same document being uploaded for more
// than one type, via word-set overlap over every pair of present texts.
func crossDocumentFlags(texts map[domain.DocumentType]string) []string {
	wordSets := make([]map[string]struct{}, 0, len(texts))
	for _, docType := range domain.RequiredDocumentTypes() {
		text, ok := texts[docType]
		if !ok || text == "" {
			continue
		}
		wordSets = append(wordSets, wordSet(text))
	}

	for i := 0; i < len(wordSets); i++ {
		for j := i + 1; j < len(wordSets); j++ {
			a, b := wordSets[i], wordSets[j]
			if len(a) < 20 || len(b) < 20 {
				continue
			}
			if overlap(a, b) > 0.8 {
				return []string{"SAME_DOCUMENT_USED_FOR_MULTIPLE_PROOFS"}
			}
		}
	}
	return nil
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) float64 {
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	if larger == 0 {
		return 0
	}

	common := 0
	for w := range a {
		if _, ok := b[w]; ok {
			common++
		}
	}
	return float64(common) / float64(larger)
}

// incomeCrossCheckFlags compares the largest figure found in the income
// proof against the declared annual income.
func incomeCrossCheckFlags(facts *domain.ApplicationFacts, incomeText string) []string {
	if facts.IncomeAnnum <= 0 || incomeText == "" {
		return nil
	}

	var inferred float64
	for _, match := range incomeFigurePattern.FindAllString(incomeText, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
		if err == nil && v > inferred {
			inferred = v
		}
	}
	if inferred == 0 {
		return nil
	}

	ratio := inferred / facts.IncomeAnnum
	switch {
	case ratio > 1.5:
		return []string{"INCOME_DOC_HIGHER_THAN_DECLARED"}
	case ratio < 0.5:
		return []string{"INCOME_DOC_LOWER_THAN_DECLARED"}
	}
	return nil
}

// dedupe removes duplicate flags while preserving first-seen order.
func dedupe(flags []string) []string {
	seen := make(map[string]struct{}, len(flags))
	out := flags[:0]
	for _, f := range flags {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// FlagDescription renders a flag code as a readable phrase for narratives.
func FlagDescription(code string) string {
	return strings.ReplaceAll(strings.ToLower(code), "_", " ")
}
