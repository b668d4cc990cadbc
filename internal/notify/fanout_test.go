package notify

import (
	"slices"
	"testing"

	"github.com/hylla/sgc/internal/domain"
)

func testTree(t *testing.T) *domain.UnitTree {
	t.Helper()
	person := func(code string) domain.Person {
		return domain.Person{ID: "p-" + code, Name: "Chief " + code, Email: code + "@example.org"}
	}
	deputy := func(code string) domain.Person {
		return domain.Person{ID: "d-" + code, Name: "Deputy " + code, Email: "deputy." + code + "@example.org"}
	}
	inputs := []domain.UnitInput{
		{ID: "root", Code: "ADM", Type: domain.UnitTypeRoot, Responsible: person("ADM")},
		{ID: "sec", Code: "SEC", Type: domain.UnitTypeIntermediate, SuperiorID: "root", Responsible: person("SEC"), Substitute: deputy("SEC")},
		{ID: "coord", Code: "COORD", Type: domain.UnitTypeInteroperational, SuperiorID: "root", Responsible: person("COORD")},
		{ID: "opa", Code: "OPA", Type: domain.UnitTypeOperational, SuperiorID: "sec", Responsible: person("OPA"), Substitute: deputy("OPA")},
		{ID: "opb", Code: "OPB", Type: domain.UnitTypeOperational, SuperiorID: "sec", Responsible: person("OPB")},
		{ID: "mute", Code: "MUTE", Type: domain.UnitTypeOperational, SuperiorID: "sec", Responsible: domain.Person{ID: "p-mute", Name: "No Mail"}},
	}
	units := make([]domain.Unit, 0, len(inputs))
	for _, in := range inputs {
		unit, err := domain.NewUnit(in)
		if err != nil {
			t.Fatalf("NewUnit() error = %v", err)
		}
		units = append(units, unit)
	}
	tree, err := domain.NewUnitTree(units)
	if err != nil {
		t.Fatalf("NewUnitTree() error = %v", err)
	}
	return tree
}

func recipients(intents []Intent) []string {
	out := make([]string, 0, len(intents))
	for _, intent := range intents {
		out = append(out, string(intent.Template)+":"+intent.Recipient.Email)
	}
	return out
}

func TestPlanOperationalUnitNotifiesResponsibleAndSubstitute(t *testing.T) {
	intents, skips := Plan(domain.Event{Kind: domain.EventCadastroReturned, UnitID: "opa", RecipientUnitID: "opa"}, testTree(t))
	want := []string{"cadastro.returned:OPA@example.org", "cadastro.returned:deputy.OPA@example.org"}
	if got := recipients(intents); !slices.Equal(got, want) {
		t.Fatalf("recipients = %v, want %v", got, want)
	}
	if len(skips) != 0 {
		t.Fatalf("unexpected skips %#v", skips)
	}
}

func TestPlanIntermediateUnitNotifiesResponsibleOnly(t *testing.T) {
	intents, _ := Plan(domain.Event{Kind: domain.EventCadastroSubmitted, UnitID: "opa", RecipientUnitID: "sec"}, testTree(t))
	want := []string{"cadastro.submitted:SEC@example.org"}
	if got := recipients(intents); !slices.Equal(got, want) {
		t.Fatalf("recipients = %v, want %v", got, want)
	}
}

func TestPlanProcessFinishedAddsSubordinateSummaries(t *testing.T) {
	event := domain.Event{Kind: domain.EventProcessFinished, UnitIDs: []string{"sec", "coord", "opa", "opb", "mute"}}
	intents, skips := Plan(event, testTree(t))
	want := []string{
		"process_finished:SEC@example.org",
		"process_finished:COORD@example.org",
		"process_finished:OPA@example.org",
		"process_finished:deputy.OPA@example.org",
		"process_finished:OPB@example.org",
		"process_finished_subordinates:SEC@example.org",
	}
	if got := recipients(intents); !slices.Equal(got, want) {
		t.Fatalf("recipients = %v, want %v", got, want)
	}
	var codes []string
	for _, unit := range intents[len(intents)-1].Subordinates {
		codes = append(codes, unit.Code)
	}
	if !slices.Equal(codes, []string{"MUTE", "OPA", "OPB"}) {
		t.Fatalf("subordinates = %v", codes)
	}
	if len(skips) != 1 || skips[0].UnitID != "mute" {
		t.Fatalf("expected the unit without e-mail to be skipped, got %#v", skips)
	}
}

func TestPlanSkipsUnknownUnitsButNotifiesTheRest(t *testing.T) {
	event := domain.Event{Kind: domain.EventProcessStarted, UnitIDs: []string{"ghost", "opb"}}
	intents, skips := Plan(event, testTree(t))
	if got := recipients(intents); !slices.Equal(got, []string{"process_started:OPB@example.org"}) {
		t.Fatalf("recipients = %v", got)
	}
	if len(skips) != 1 || skips[0].UnitID != "ghost" {
		t.Fatalf("unexpected skips %#v", skips)
	}

	intents, skips = Plan(domain.Event{Kind: domain.EventMapSubmitted}, testTree(t))
	if len(intents) != 0 || len(skips) != 0 {
		t.Fatalf("event without recipient unit must plan nothing, got %v %v", intents, skips)
	}
}

func TestPlanNotifiesSubstituteWhenResponsibleHasNoEmail(t *testing.T) {
	unit, err := domain.NewUnit(domain.UnitInput{
		ID:          "op",
		Code:        "OP",
		Type:        domain.UnitTypeOperational,
		Responsible: domain.Person{ID: "p-op", Name: "No Mail"},
		Substitute:  domain.Person{ID: "d-op", Name: "Deputy", Email: "deputy@example.org"},
	})
	if err != nil {
		t.Fatalf("NewUnit() error = %v", err)
	}
	tree, err := domain.NewUnitTree([]domain.Unit{unit})
	if err != nil {
		t.Fatalf("NewUnitTree() error = %v", err)
	}

	intents, skips := Plan(domain.Event{Kind: domain.EventProcessStarted, UnitIDs: []string{"op"}}, tree)
	if got := recipients(intents); !slices.Equal(got, []string{"process_started:deputy@example.org"}) {
		t.Fatalf("recipients = %v", got)
	}
	if len(skips) != 0 {
		t.Fatalf("unexpected skips %#v", skips)
	}
}

func TestPlanSubstituteSharingResponsibleEmailIsNotifiedOnce(t *testing.T) {
	unit, err := domain.NewUnit(domain.UnitInput{
		ID:          "op",
		Code:        "OP",
		Type:        domain.UnitTypeOperational,
		Responsible: domain.Person{ID: "p-op", Email: "team@example.org"},
		Substitute:  domain.Person{ID: "d-op", Email: "TEAM@example.org"},
	})
	if err != nil {
		t.Fatalf("NewUnit() error = %v", err)
	}
	tree, err := domain.NewUnitTree([]domain.Unit{unit})
	if err != nil {
		t.Fatalf("NewUnitTree() error = %v", err)
	}

	intents, _ := Plan(domain.Event{Kind: domain.EventMapSubmitted, RecipientUnitID: "op"}, tree)
	if got := recipients(intents); !slices.Equal(got, []string{"map.submitted:team@example.org"}) {
		t.Fatalf("recipients = %v", got)
	}
}
