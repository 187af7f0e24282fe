package models

import (
	"github.com/pkg/errors"
)

// CreationProcess declares how a piece of content was produced.
type CreationProcess string

const (
	HumanWritten           CreationProcess = "HUMAN_WRITTEN"
	AIGeneratedHumanEdited CreationProcess = "AI_GENERATED_HUMAN_EDITED"
	AIAssistedResearch     CreationProcess = "AI_ASSISTED_RESEARCH"
	AIAssistedEditing      CreationProcess = "AI_ASSISTED_EDITING"
	FullyAIGenerated       CreationProcess = "FULLY_AI_GENERATED"
)

// CreationProcesses lists the closed set in display order.
var CreationProcesses = []CreationProcess{
	HumanWritten,
	AIGeneratedHumanEdited,
	AIAssistedResearch,
	AIAssistedEditing,
	FullyAIGenerated,
}

var creationProcessLabels = map[CreationProcess]string{
	HumanWritten:           "Human-written",
	AIGeneratedHumanEdited: "AI-generated, human-edited",
	AIAssistedResearch:     "AI-assisted research",
	AIAssistedEditing:      "AI-assisted editing",
	FullyAIGenerated:       "Fully AI-generated",
}

var creationProcessDescriptions = map[CreationProcess]string{
	HumanWritten:           "Written entirely by a human author",
	AIGeneratedHumanEdited: "Drafted by AI and substantially revised by a human",
	AIAssistedResearch:     "Research supported by AI tools, text written by a human",
	AIAssistedEditing:      "Proofreading or translation supported by AI tools",
	FullyAIGenerated:       "Generated entirely by AI",
}

// Label is the public display text.
func (p CreationProcess) Label() string {
	return creationProcessLabels[p]
}

// Description is the longer text shown on the verify page.
func (p CreationProcess) Description() string {
	return creationProcessDescriptions[p]
}

// InvolvesAI reports whether any AI tooling took part.
func (p CreationProcess) InvolvesAI() bool {
	return p != HumanWritten
}

func ParseCreationProcess(s string) (CreationProcess, error) {
	p := CreationProcess(s)
	if _, ok := creationProcessLabels[p]; !ok {
		return "", errors.Errorf("unknown creation process %q", s)
	}
	return p, nil
}

// SourceType declares which sources the content relies on.
type SourceType string

const (
	PrimarySources   SourceType = "PRIMARY_SOURCES"
	SecondarySources SourceType = "SECONDARY_SOURCES"
	ExpertKnowledge  SourceType = "EXPERT_KNOWLEDGE"
	SourcesCited     SourceType = "SOURCES_CITED"
)

var sourceTypeLabels = map[SourceType]string{
	PrimarySources:   "Primary sources (interviews, studies)",
	SecondarySources: "Secondary sources (other articles, books)",
	ExpertKnowledge:  "Expert knowledge of the author",
	SourcesCited:     "Sources cited in the article",
}

func (s SourceType) Label() string {
	return sourceTypeLabels[s]
}

func ParseSourceType(s string) (SourceType, error) {
	t := SourceType(s)
	if _, ok := sourceTypeLabels[t]; !ok {
		return "", errors.Errorf("unknown source type %q", s)
	}
	return t, nil
}

// FactCheckType declares how the content was fact-checked.
type FactCheckType string

const (
	InternalReview    FactCheckType = "INTERNAL_REVIEW"
	ExternalFactcheck FactCheckType = "EXTERNAL_FACTCHECK"
	NoFormalFactcheck FactCheckType = "NO_FORMAL_FACTCHECK"
)

var factCheckLabels = map[FactCheckType]string{
	InternalReview:    "Internal review",
	ExternalFactcheck: "External fact-check",
	NoFormalFactcheck: "No formal fact-check",
}

func (f FactCheckType) Label() string {
	return factCheckLabels[f]
}

func ParseFactCheckType(s string) (FactCheckType, error) {
	f := FactCheckType(s)
	if _, ok := factCheckLabels[f]; !ok {
		return "", errors.Errorf("unknown fact-check type %q", s)
	}
	return f, nil
}

type CertificateStatus string

const (
	CertificateActive  CertificateStatus = "ACTIVE"
	CertificateRevoked CertificateStatus = "REVOKED"
	CertificateExpired CertificateStatus = "EXPIRED"
)

func ParseCertificateStatus(s string) (CertificateStatus, error) {
	switch st := CertificateStatus(s); st {
	case CertificateActive, CertificateRevoked, CertificateExpired:
		return st, nil
	}
	return "", errors.Errorf("unknown certificate status %q", s)
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationFailed   VerificationStatus = "FAILED"
)

// VerificationMethod is the proof-of-control channel.
type VerificationMethod string

const (
	MethodDNS  VerificationMethod = "DNS"
	MethodMeta VerificationMethod = "META"
)

func ParseVerificationMethod(s string) (VerificationMethod, error) {
	switch m := VerificationMethod(s); m {
	case MethodDNS, MethodMeta:
		return m, nil
	}
	return "", errors.Errorf("unknown verification method %q", s)
}
