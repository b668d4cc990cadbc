package domain

import (
	"strings"
	"time"
)

// Movement records a hand-off of responsibility for a subprocess between units.
// OriginUnitID is empty for the movement created when the process starts.
type Movement struct {
	ID                string
	SubprocessID      string
	OriginUnitID      string
	DestinationUnitID string
	Description       string
	PerformedBy       string
	OccurredAt        time.Time
}

// NewMovement constructs a movement.
func NewMovement(id, subprocessID, originUnitID, destinationUnitID, description, performedBy string, now time.Time) (Movement, error) {
	id = strings.TrimSpace(id)
	subprocessID = strings.TrimSpace(subprocessID)
	destinationUnitID = strings.TrimSpace(destinationUnitID)
	if id == "" || subprocessID == "" || destinationUnitID == "" {
		return Movement{}, ErrInvalidID
	}
	return Movement{
		ID:                id,
		SubprocessID:      subprocessID,
		OriginUnitID:      strings.TrimSpace(originUnitID),
		DestinationUnitID: destinationUnitID,
		Description:       strings.TrimSpace(description),
		PerformedBy:       strings.TrimSpace(performedBy),
		OccurredAt:        now.UTC(),
	}, nil
}

// AnalysisStage identifies which workflow stage an analysis reviewed.
type AnalysisStage string

// AnalysisStage values.
const (
	AnalysisStageCadastro AnalysisStage = "CADASTRO"
	AnalysisStageMap      AnalysisStage = "MAP"
)

// AnalysisAction is the reviewer's decision.
type AnalysisAction string

// AnalysisAction values.
const (
	AnalysisReturn     AnalysisAction = "RETURN"
	AnalysisAccept     AnalysisAction = "ACCEPT"
	AnalysisHomologate AnalysisAction = "HOMOLOGATE"
)

// Analysis is the audit record of a review decision.
type Analysis struct {
	ID            string
	SubprocessID  string
	Stage         AnalysisStage
	Action        AnalysisAction
	UnitID        string
	AnalystID     string
	Reason        string
	Observations  string
	ImpactSummary string
	CreatedAt     time.Time
}

// AnalysisInput holds input values for NewAnalysis.
type AnalysisInput struct {
	ID            string
	SubprocessID  string
	Stage         AnalysisStage
	Action        AnalysisAction
	UnitID        string
	AnalystID     string
	Reason        string
	Observations  string
	ImpactSummary string
}

// NewAnalysis constructs an analysis record.
func NewAnalysis(in AnalysisInput, now time.Time) (Analysis, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.SubprocessID = strings.TrimSpace(in.SubprocessID)
	in.UnitID = strings.TrimSpace(in.UnitID)
	if in.ID == "" || in.SubprocessID == "" || in.UnitID == "" {
		return Analysis{}, ErrInvalidID
	}
	return Analysis{
		ID:            in.ID,
		SubprocessID:  in.SubprocessID,
		Stage:         in.Stage,
		Action:        in.Action,
		UnitID:        in.UnitID,
		AnalystID:     strings.TrimSpace(in.AnalystID),
		Reason:        strings.TrimSpace(in.Reason),
		Observations:  strings.TrimSpace(in.Observations),
		ImpactSummary: strings.TrimSpace(in.ImpactSummary),
		CreatedAt:     now.UTC(),
	}, nil
}
