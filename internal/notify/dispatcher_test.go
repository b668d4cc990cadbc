package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hylla/sgc/internal/domain"
)

type sentMessage struct {
	to, subject, body string
}

type fakeSender struct {
	sent   []sentMessage
	failTo string
}

func (s *fakeSender) SendHTML(_ context.Context, to, subject, body string) error {
	if to == s.failTo {
		return errors.New("mailbox unavailable")
	}
	s.sent = append(s.sent, sentMessage{to: to, subject: subject, body: body})
	return nil
}

type fakeDirectory struct {
	tree *domain.UnitTree
	err  error
}

func (d fakeDirectory) UnitSnapshot(context.Context) (*domain.UnitTree, error) {
	return d.tree, d.err
}

type countingMetrics struct {
	ok, failed int
}

func (m *countingMetrics) NotificationObserved(_ string, err error) {
	if err != nil {
		m.failed++
		return
	}
	m.ok++
}

func TestDispatcherSendsEveryIntentDespiteFailures(t *testing.T) {
	sender := &fakeSender{failTo: "OPA@example.org"}
	metrics := &countingMetrics{}
	d := NewDispatcher(fakeDirectory{tree: testTree(t)}, sender, Config{SubjectPrefix: "[SGC]", Metrics: metrics})

	err := d.Publish(context.Background(), domain.Event{
		Kind:               domain.EventCadastroReturned,
		ProcessDescription: "Mapping 2026",
		UnitID:             "opa",
		RecipientUnitID:    "opa",
		Note:               "<b>missing</b> knowledge",
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].to != "deputy.OPA@example.org" {
		t.Fatalf("unexpected deliveries %#v", sender.sent)
	}
	if metrics.ok != 1 || metrics.failed != 1 {
		t.Fatalf("metrics = %+v, want 1 ok and 1 failed", metrics)
	}
	msg := sender.sent[0]
	if msg.subject != "[SGC] Cadastro of OPA returned - Mapping 2026" {
		t.Fatalf("subject = %q", msg.subject)
	}
	if !strings.Contains(msg.body, "Dear Deputy OPA") || !strings.Contains(msg.body, "&lt;b&gt;missing&lt;/b&gt; knowledge") {
		t.Fatalf("unexpected body %q", msg.body)
	}
}

func TestDispatcherRendersSubordinateList(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(fakeDirectory{tree: testTree(t)}, sender, Config{})
	if err := d.Publish(context.Background(), domain.Event{
		Kind:               domain.EventProcessFinished,
		ProcessDescription: "Mapping 2026",
		UnitIDs:            []string{"sec", "opb"},
	}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	var summary *sentMessage
	for i := range sender.sent {
		if strings.HasPrefix(sender.sent[i].subject, "Process finished for units under SEC") {
			summary = &sender.sent[i]
		}
	}
	if summary == nil {
		t.Fatalf("expected a subordinate summary, got %#v", sender.sent)
	}
	if !strings.Contains(summary.body, "<li>OPB - OPB</li>") || strings.Contains(summary.body, "OPA") {
		t.Fatalf("unexpected summary body %q", summary.body)
	}
}

func TestDispatcherReturnsDirectoryErrors(t *testing.T) {
	d := NewDispatcher(fakeDirectory{err: errors.New("directory offline")}, &fakeSender{}, Config{})
	if err := d.Publish(context.Background(), domain.Event{Kind: domain.EventMapSubmitted, RecipientUnitID: "opa"}); err == nil {
		t.Fatal("expected Publish() to fail when the directory is unavailable")
	}
}

func TestRenderRejectsUnknownTemplate(t *testing.T) {
	if _, _, err := Render(Intent{Template: "nope"}, ""); err == nil {
		t.Fatal("expected Render() to fail for an unknown template")
	}
}
