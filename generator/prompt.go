package generator

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Prompt 表示发送给 LLM 的消息集合：恰好一条 system 与一条 user。
type Prompt struct {
	Task     string
	System   string
	User     string
	JSONMode bool
}

//go:embed prompts/default.yaml
var defaultPromptsYAML []byte

const (
	noPreviousSummary  = "(none: this is the first summary)"
	noPreviousFeedback = "(none: this is the first review)"
)

// PromptSet holds the parsed templates for every agent step.
type PromptSet struct {
	Summarize   *template.Template
	Refine      *template.Template
	Review      *template.Template
	FinalReview *template.Template
	Approval    *template.Template
	Title       *template.Template
}

type promptFile struct {
	Summarize   string `yaml:"summarize"`
	Refine      string `yaml:"refine"`
	Review      string `yaml:"review"`
	FinalReview string `yaml:"final_review"`
	Approval    string `yaml:"approval"`
	Title       string `yaml:"title"`
}

// PromptData is the union of fields referenced by the templates.
type PromptData struct {
	InputText        string
	Feedback         string
	PreviousSummary  string
	PreviousFeedback string
	CurrentSummary   string
	Critique         string
	Transcript       string
	ApprovedSummary  string
}

// DefaultPrompts returns the embedded prompt set.
func DefaultPrompts() *PromptSet {
	ps, err := parsePromptSet(defaultPromptsYAML, nil)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts invalid: %v", err))
	}
	return ps
}

// LoadPromptSet reads a YAML file whose keys override the embedded defaults.
// An empty path yields the defaults.
func LoadPromptSet(path string) (*PromptSet, error) {
	if path == "" {
		return DefaultPrompts(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	var base promptFile
	if err := yaml.Unmarshal(defaultPromptsYAML, &base); err != nil {
		return nil, err
	}
	return parsePromptSet(data, &base)
}

func parsePromptSet(data []byte, base *promptFile) (*PromptSet, error) {
	var pf promptFile
	if base != nil {
		pf = *base
	}
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}

	ps := &PromptSet{}
	for _, t := range []struct {
		name string
		src  string
		dst  **template.Template
	}{
		{TaskSummarize, pf.Summarize, &ps.Summarize},
		{TaskRefine, pf.Refine, &ps.Refine},
		{TaskReview, pf.Review, &ps.Review},
		{"final_review", pf.FinalReview, &ps.FinalReview},
		{TaskApproval, pf.Approval, &ps.Approval},
		{TaskTitle, pf.Title, &ps.Title},
	} {
		if strings.TrimSpace(t.src) == "" {
			return nil, fmt.Errorf("prompt %q is empty", t.name)
		}
		tmpl, err := template.New(t.name).Option("missingkey=error").Parse(t.src)
		if err != nil {
			return nil, fmt.Errorf("prompt %q: %w", t.name, err)
		}
		*t.dst = tmpl
	}
	return ps, nil
}

func render(t *template.Template, data PromptData) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// BuildInitialPrompt 生成首稿提示词。
func (ps *PromptSet) BuildInitialPrompt(input string) (Prompt, error) {
	sys, err := render(ps.Summarize, PromptData{InputText: input})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{Task: TaskSummarize, System: sys, User: input}, nil
}

// BuildRevisionPrompt 生成修订提示词。
func (ps *PromptSet) BuildRevisionPrompt(input, feedback string) (Prompt, error) {
	sys, err := render(ps.Refine, PromptData{InputText: input, Feedback: feedback})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{Task: TaskRefine, System: sys, User: input}, nil
}

// BuildReviewPrompt picks the strict or the lenient final-pass template.
func (ps *PromptSet) BuildReviewPrompt(current, prevDraft, prevCritique string, finalPass bool) (Prompt, error) {
	if prevDraft == "" {
		prevDraft = noPreviousSummary
	}
	if prevCritique == "" {
		prevCritique = noPreviousFeedback
	}
	t := ps.Review
	if finalPass {
		t = ps.FinalReview
	}
	sys, err := render(t, PromptData{
		CurrentSummary:   current,
		PreviousSummary:  prevDraft,
		PreviousFeedback: prevCritique,
	})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{Task: TaskReview, System: sys, User: current}, nil
}

// BuildApprovalPrompt asks for a structured verdict on a critique.
func (ps *PromptSet) BuildApprovalPrompt(critique string) (Prompt, error) {
	sys, err := render(ps.Approval, PromptData{Critique: critique})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{
		Task:     TaskApproval,
		System:   sys,
		User:     "Is this summary of sufficient quality?",
		JSONMode: true,
	}, nil
}

// BuildTitlePrompt requests a JSON object holding only a title.
func (ps *PromptSet) BuildTitlePrompt(input string, transcript []string, approved string) (Prompt, error) {
	sys, err := render(ps.Title, PromptData{
		InputText:       input,
		Transcript:      strings.Join(transcript, "\n"),
		ApprovedSummary: approved,
	})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{
		Task:     TaskTitle,
		System:   sys,
		User:     "Please generate the title.",
		JSONMode: true,
	}, nil
}
