package service

import (
	"reflect"
	"testing"
)

func TestResolveAuthorizations_AdminAlwaysEmpty(t *testing.T) {
	got := ResolveAuthorizations(false, RoleAdmin, []string{"a", "b"}, "legacy", []string{"c"})
	if len(got) != 0 {
		t.Fatalf("expected empty set for admin, got %v", got)
	}
}

func TestResolveAuthorizations_ExplicitListReplacesWholesale(t *testing.T) {
	got := ResolveAuthorizations(false, RoleAgent, []string{"b", "a", "a"}, "ignored", []string{"c", "d"})
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestResolveAuthorizations_ExplicitEmptyListClearsSet(t *testing.T) {
	got := ResolveAuthorizations(false, RoleAgent, []string{}, "", []string{"c", "d"})
	if len(got) != 0 {
		t.Fatalf("expected explicit empty list to clear the set, got %v", got)
	}
}

func TestResolveAuthorizations_LegacySingleSource(t *testing.T) {
	got := ResolveAuthorizations(false, RoleAgent, nil, "mortgage-advice", []string{"c"})
	want := []string{"mortgage-advice"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestResolveAuthorizations_NewAgentSilenceGrantsNothing(t *testing.T) {
	got := ResolveAuthorizations(true, RoleAgent, nil, "", nil)
	if len(got) != 0 {
		t.Fatalf("expected no sources for new agent without directory sources, got %v", got)
	}
}

func TestResolveAuthorizations_ExistingAgentSilenceKeepsSet(t *testing.T) {
	got := ResolveAuthorizations(false, RoleAgent, nil, "", []string{"b", "a"})
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected current set preserved, got %v", got)
	}
}

func TestNormalizeSources_DropsEmptiesAndDuplicates(t *testing.T) {
	got := normalizeSources([]string{"b", "", "a", "b"})
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDiffSources(t *testing.T) {
	toInsert, toDelete := diffSources([]string{"a", "b"}, []string{"b", "c"})
	if !reflect.DeepEqual(toInsert, []string{"c"}) {
		t.Fatalf("expected insert [c], got %v", toInsert)
	}
	if !reflect.DeepEqual(toDelete, []string{"a"}) {
		t.Fatalf("expected delete [a], got %v", toDelete)
	}
}

func TestDiffSources_NoChanges(t *testing.T) {
	toInsert, toDelete := diffSources([]string{"a"}, []string{"a"})
	if len(toInsert) != 0 || len(toDelete) != 0 {
		t.Fatalf("expected no changes, got insert %v delete %v", toInsert, toDelete)
	}
}
