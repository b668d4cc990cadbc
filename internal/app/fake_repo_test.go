package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/hylla/sgc/internal/domain"
)

type fakeRepo struct {
	processes    map[string]domain.Process
	subprocesses map[string]domain.Subprocess
	maps         map[string]domain.Map
	activities   map[string]domain.Activity
	knowledge    map[string]domain.Knowledge
	competencies map[string]domain.Competency
	links        []domain.CompetencyLink
	effective    map[string]domain.EffectiveMap
	movements    []domain.Movement
	analyses     []domain.Analysis

	failCreateMovement error
	beforeUpdateSub    func(*fakeRepo, domain.Subprocess)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		processes:    map[string]domain.Process{},
		subprocesses: map[string]domain.Subprocess{},
		maps:         map[string]domain.Map{},
		activities:   map[string]domain.Activity{},
		knowledge:    map[string]domain.Knowledge{},
		competencies: map[string]domain.Competency{},
		effective:    map[string]domain.EffectiveMap{},
	}
}

func (f *fakeRepo) snapshot() *fakeRepo {
	return &fakeRepo{
		processes:    maps.Clone(f.processes),
		subprocesses: maps.Clone(f.subprocesses),
		maps:         maps.Clone(f.maps),
		activities:   maps.Clone(f.activities),
		knowledge:    maps.Clone(f.knowledge),
		competencies: maps.Clone(f.competencies),
		links:        slices.Clone(f.links),
		effective:    maps.Clone(f.effective),
		movements:    slices.Clone(f.movements),
		analyses:     slices.Clone(f.analyses),
	}
}

func (f *fakeRepo) restore(s *fakeRepo) {
	f.processes = s.processes
	f.subprocesses = s.subprocesses
	f.maps = s.maps
	f.activities = s.activities
	f.knowledge = s.knowledge
	f.competencies = s.competencies
	f.links = s.links
	f.effective = s.effective
	f.movements = s.movements
	f.analyses = s.analyses
}

func (f *fakeRepo) InTx(_ context.Context, fn func(Store) error) error {
	saved := f.snapshot()
	if err := fn(f); err != nil {
		f.restore(saved)
		return err
	}
	return nil
}

func (f *fakeRepo) CreateProcess(_ context.Context, p domain.Process) error {
	f.processes[p.ID] = p
	return nil
}

func (f *fakeRepo) UpdateProcess(_ context.Context, p domain.Process) error {
	if _, ok := f.processes[p.ID]; !ok {
		return ErrNotFound
	}
	f.processes[p.ID] = p
	return nil
}

func (f *fakeRepo) GetProcess(_ context.Context, id string) (domain.Process, error) {
	p, ok := f.processes[id]
	if !ok {
		return domain.Process{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) ListProcesses(_ context.Context) ([]domain.Process, error) {
	out := slices.Collect(maps.Values(f.processes))
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeRepo) DeleteProcess(_ context.Context, id string) error {
	if _, ok := f.processes[id]; !ok {
		return ErrNotFound
	}
	delete(f.processes, id)
	return nil
}

func (f *fakeRepo) CreateSubprocess(_ context.Context, s domain.Subprocess) error {
	f.subprocesses[s.ID] = s
	return nil
}

func (f *fakeRepo) UpdateSubprocess(_ context.Context, s domain.Subprocess) error {
	if f.beforeUpdateSub != nil {
		f.beforeUpdateSub(f, s)
	}
	stored, ok := f.subprocesses[s.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != s.Version {
		return fmt.Errorf("%w: subprocess %s", ErrConflict, s.ID)
	}
	s.Version++
	f.subprocesses[s.ID] = s
	return nil
}

func (f *fakeRepo) GetSubprocess(_ context.Context, id string) (domain.Subprocess, error) {
	s, ok := f.subprocesses[id]
	if !ok {
		return domain.Subprocess{}, ErrNotFound
	}
	return s, nil
}

func (f *fakeRepo) ListSubprocesses(_ context.Context, processID string) ([]domain.Subprocess, error) {
	var out []domain.Subprocess
	for _, s := range f.subprocesses {
		if s.ProcessID == processID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) ListActiveSubprocessesByUnit(_ context.Context, unitID string) ([]domain.Subprocess, error) {
	var out []domain.Subprocess
	for _, s := range f.subprocesses {
		if s.UnitID != unitID {
			continue
		}
		if f.processes[s.ProcessID].State == domain.ProcessStateInProgress {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateMap(_ context.Context, m domain.Map) error {
	f.maps[m.ID] = m
	return nil
}

func (f *fakeRepo) UpdateMap(_ context.Context, m domain.Map) error {
	f.maps[m.ID] = m
	return nil
}

func (f *fakeRepo) GetMap(_ context.Context, id string) (domain.Map, error) {
	m, ok := f.maps[id]
	if !ok {
		return domain.Map{}, ErrNotFound
	}
	return m, nil
}

func (f *fakeRepo) CreateActivity(_ context.Context, a domain.Activity) error {
	a.Knowledge = nil
	f.activities[a.ID] = a
	return nil
}

func (f *fakeRepo) UpdateActivity(_ context.Context, a domain.Activity) error {
	if _, ok := f.activities[a.ID]; !ok {
		return ErrNotFound
	}
	a.Knowledge = nil
	f.activities[a.ID] = a
	return nil
}

func (f *fakeRepo) DeleteActivity(_ context.Context, id string) error {
	if _, ok := f.activities[id]; !ok {
		return ErrNotFound
	}
	delete(f.activities, id)
	for kid, k := range f.knowledge {
		if k.ActivityID == id {
			delete(f.knowledge, kid)
		}
	}
	f.links = slices.DeleteFunc(f.links, func(l domain.CompetencyLink) bool { return l.ActivityID == id })
	return nil
}

func (f *fakeRepo) GetActivity(_ context.Context, id string) (domain.Activity, error) {
	a, ok := f.activities[id]
	if !ok {
		return domain.Activity{}, ErrNotFound
	}
	a.Knowledge = f.knowledgeOf(id)
	return a, nil
}

func (f *fakeRepo) ListActivities(_ context.Context, mapID string) ([]domain.Activity, error) {
	var out []domain.Activity
	for _, a := range f.activities {
		if a.MapID == mapID {
			a.Knowledge = f.knowledgeOf(a.ID)
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) knowledgeOf(activityID string) []domain.Knowledge {
	var out []domain.Knowledge
	for _, k := range f.knowledge {
		if k.ActivityID == activityID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeRepo) CreateKnowledge(_ context.Context, k domain.Knowledge) error {
	if _, ok := f.activities[k.ActivityID]; !ok {
		return ErrNotFound
	}
	f.knowledge[k.ID] = k
	return nil
}

func (f *fakeRepo) GetKnowledge(_ context.Context, id string) (domain.Knowledge, error) {
	k, ok := f.knowledge[id]
	if !ok {
		return domain.Knowledge{}, ErrNotFound
	}
	return k, nil
}

func (f *fakeRepo) DeleteKnowledge(_ context.Context, id string) error {
	if _, ok := f.knowledge[id]; !ok {
		return ErrNotFound
	}
	delete(f.knowledge, id)
	return nil
}

func (f *fakeRepo) ReplaceCompetencies(_ context.Context, mapID string, competencies []domain.Competency, links []domain.CompetencyLink) error {
	removed := map[string]struct{}{}
	for id, c := range f.competencies {
		if c.MapID == mapID {
			removed[id] = struct{}{}
			delete(f.competencies, id)
		}
	}
	f.links = slices.DeleteFunc(f.links, func(l domain.CompetencyLink) bool {
		_, gone := removed[l.CompetencyID]
		return gone
	})
	for _, c := range competencies {
		f.competencies[c.ID] = c
	}
	f.links = append(f.links, links...)
	return nil
}

func (f *fakeRepo) ListCompetencies(_ context.Context, mapID string) ([]domain.Competency, []domain.CompetencyLink, error) {
	var competencies []domain.Competency
	ids := map[string]struct{}{}
	for _, c := range f.competencies {
		if c.MapID == mapID {
			competencies = append(competencies, c)
			ids[c.ID] = struct{}{}
		}
	}
	sort.Slice(competencies, func(i, j int) bool { return competencies[i].ID < competencies[j].ID })
	var links []domain.CompetencyLink
	for _, l := range f.links {
		if _, ok := ids[l.CompetencyID]; ok {
			links = append(links, l)
		}
	}
	return competencies, links, nil
}

func (f *fakeRepo) GetEffectiveMap(_ context.Context, unitID string) (domain.EffectiveMap, error) {
	e, ok := f.effective[unitID]
	if !ok {
		return domain.EffectiveMap{}, ErrNotFound
	}
	return e, nil
}

func (f *fakeRepo) SetEffectiveMap(_ context.Context, e domain.EffectiveMap) error {
	f.effective[e.UnitID] = e
	return nil
}

func (f *fakeRepo) CreateMovement(_ context.Context, m domain.Movement) error {
	if f.failCreateMovement != nil {
		return f.failCreateMovement
	}
	f.movements = append(f.movements, m)
	return nil
}

func (f *fakeRepo) ListMovements(_ context.Context, subprocessID string) ([]domain.Movement, error) {
	var out []domain.Movement
	for _, m := range f.movements {
		if m.SubprocessID == subprocessID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateAnalysis(_ context.Context, a domain.Analysis) error {
	f.analyses = append(f.analyses, a)
	return nil
}

func (f *fakeRepo) ListAnalyses(_ context.Context, subprocessID string) ([]domain.Analysis, error) {
	var out []domain.Analysis
	for _, a := range f.analyses {
		if a.SubprocessID == subprocessID {
			out = append(out, a)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) kinds() []domain.EventKind {
	out := make([]domain.EventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

type recordingMetrics struct {
	outcomes map[string][]string
}

func (m *recordingMetrics) TransitionObserved(operation string, err error) {
	if m.outcomes == nil {
		m.outcomes = map[string][]string{}
	}
	m.outcomes[operation] = append(m.outcomes[operation], ErrorClass(err))
}

// Unit ids used across the workflow tests.
const (
	unitRoot   = "u-root"
	unitSec    = "u-sec"
	unitOpA    = "u-opa"
	unitOpB    = "u-opb"
	unitOrphan = "u-lone"
)

func testTree() *domain.UnitTree {
	mk := func(id, code string, typ domain.UnitType, superior string) domain.Unit {
		unit, err := domain.NewUnit(domain.UnitInput{
			ID:          id,
			Code:        code,
			Name:        code + " unit",
			Type:        typ,
			SuperiorID:  superior,
			Responsible: domain.Person{ID: "r-" + id, Name: "Chief " + code, Email: code + "@example.org"},
		})
		if err != nil {
			panic(err)
		}
		return unit
	}
	tree, err := domain.NewUnitTree([]domain.Unit{
		mk(unitRoot, "ADM", domain.UnitTypeRoot, ""),
		mk(unitSec, "SEC", domain.UnitTypeIntermediate, unitRoot),
		mk(unitOpA, "OPA", domain.UnitTypeOperational, unitSec),
		mk(unitOpB, "OPB", domain.UnitTypeOperational, unitSec),
		mk(unitOrphan, "LONE", domain.UnitTypeOperational, ""),
	})
	if err != nil {
		panic(err)
	}
	return tree
}

var (
	adminActor  = domain.Actor{ID: "admin", UnitID: unitRoot, Role: domain.RoleAdmin}
	secChief    = domain.Actor{ID: "sec-chief", UnitID: unitSec, Role: domain.RoleChief}
	opAChief    = domain.Actor{ID: "opa-chief", UnitID: unitOpA, Role: domain.RoleChief}
	opBChief    = domain.Actor{ID: "opb-chief", UnitID: unitOpB, Role: domain.RoleChief}
	orphanChief = domain.Actor{ID: "lone-chief", UnitID: unitOrphan, Role: domain.RoleChief}
)

type testHarness struct {
	repo    *fakeRepo
	svc     *Service
	events  *recordingPublisher
	metrics *recordingMetrics
	now     time.Time
}

func newHarness() *testHarness {
	h := &testHarness{
		repo:    newFakeRepo(),
		events:  &recordingPublisher{},
		metrics: &recordingMetrics{},
		now:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	seq := 0
	idGen := func() string {
		seq++
		return fmt.Sprintf("id-%04d", seq)
	}
	clock := func() time.Time {
		h.now = h.now.Add(time.Minute)
		return h.now
	}
	h.svc = NewService(h.repo, StaticDirectory{Tree: testTree()}, idGen, clock, ServiceConfig{
		Events:  h.events,
		Metrics: h.metrics,
	})
	return h
}

func isValidationError(err error) (*domain.ValidationError, bool) {
	var target *domain.ValidationError
	ok := errors.As(err, &target)
	return target, ok
}
