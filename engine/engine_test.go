/*************************************************************************
 * Copyright 2025 FlySight Core Contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package engine

import (
	"math"
	"testing"

	"github.com/flysight/flysight-core/registry"
	"github.com/flysight/flysight-core/session"
)

func velHRecipe(counter *int) registry.Recipe[[]float64] {
	return registry.Recipe[[]float64]{
		Name: "velH",
		Deps: []session.DependencyKey{
			session.MeasurementKey(session.GNSS, "velN"),
			session.MeasurementKey(session.GNSS, "velE"),
		},
		Compute: func(r registry.Resolver) ([]float64, bool) {
			*counter++
			velN, ok := r.GetMeasurement(session.GNSS, "velN")
			if !ok {
				return nil, false
			}
			velE, ok := r.GetMeasurement(session.GNSS, "velE")
			if !ok || len(velE) != len(velN) {
				return nil, false
			}
			out := make([]float64, len(velN))
			for i := range velN {
				out[i] = math.Sqrt(velN[i]*velN[i] + velE[i]*velE[i])
			}
			return out, true
		},
	}
}

func TestDerivedMagnitudeMemoizedAndInvalidated(t *testing.T) {
	reg := registry.New()
	var computeCount int
	reg.RegisterMeasurement(session.GNSS, "velH", velHRecipe(&computeCount))

	e := New(reg, nil)
	s := session.New(nil)
	s.SetRawMeasurement(session.GNSS, "velN", []float64{3.0, 3.0})
	s.SetRawMeasurement(session.GNSS, "velE", []float64{4.0, 4.0})

	got, ok := e.GetMeasurement(s, session.GNSS, "velH")
	if !ok {
		t.Fatal("expected velH to resolve")
	}
	if got[0] != 5.0 || got[1] != 5.0 {
		t.Fatalf("got %v, want [5 5]", got)
	}
	if computeCount != 1 {
		t.Fatalf("expected 1 compute, got %d", computeCount)
	}

	// Second call must be served from cache.
	if _, ok := e.GetMeasurement(s, session.GNSS, "velH"); !ok {
		t.Fatal("expected cached velH")
	}
	if computeCount != 1 {
		t.Fatalf("expected cached read, compute count still 1, got %d", computeCount)
	}

	// Mutate an input; the cached entry must be gone until the next read.
	e.SetMeasurement(s, session.GNSS, "velN", []float64{6.0, 8.0})
	if _, ok := s.CachedMeasurement(session.MeasurementKey(session.GNSS, "velH")); ok {
		t.Fatal("expected velH cache entry to be invalidated")
	}

	got, ok = e.GetMeasurement(s, session.GNSS, "velH")
	if !ok {
		t.Fatal("expected velH to resolve after invalidation")
	}
	if got[0] != 10.0 {
		t.Fatalf("got %v, want first element 10", got)
	}
	if math.Abs(got[1]-math.Sqrt(72)) > 1e-9 {
		t.Fatalf("got %v, want second element sqrt(72)", got)
	}
	if computeCount != 2 {
		t.Fatalf("expected 2 computes total, got %d", computeCount)
	}
}

func TestCycleSafety(t *testing.T) {
	reg := registry.New()
	reg.RegisterAttribute("A", registry.Recipe[session.AttributeValue]{
		Name: "A-from-B",
		Deps: []session.DependencyKey{session.AttributeKey("B")},
		Compute: func(r registry.Resolver) (session.AttributeValue, bool) {
			return r.GetAttribute("B")
		},
	})
	reg.RegisterAttribute("B", registry.Recipe[session.AttributeValue]{
		Name: "B-from-A",
		Deps: []session.DependencyKey{session.AttributeKey("A")},
		Compute: func(r registry.Resolver) (session.AttributeValue, bool) {
			return r.GetAttribute("A")
		},
	})

	e := New(reg, nil)
	s := session.New(nil)

	if _, ok := e.GetAttribute(s, "A"); ok {
		t.Fatal("expected A to be unresolvable")
	}
	if _, ok := s.CachedAttribute("A"); ok {
		t.Fatal("A must not be cached")
	}
	if _, ok := s.CachedAttribute("B"); ok {
		t.Fatal("B must not be cached")
	}
}

func TestRawMeasurementTakesPrecedenceOverRecipe(t *testing.T) {
	reg := registry.New()
	reg.RegisterMeasurement(session.GNSS, "velH", registry.Recipe[[]float64]{
		Deps: nil,
		Compute: func(r registry.Resolver) ([]float64, bool) {
			return []float64{999}, true
		},
	})
	e := New(reg, nil)
	s := session.New(nil)
	s.SetRawMeasurement(session.GNSS, "velH", []float64{1, 2, 3})

	got, ok := e.GetMeasurement(s, session.GNSS, "velH")
	if !ok {
		t.Fatal("expected raw value")
	}
	if len(got) != 3 || got[0] != 1 {
		t.Fatalf("raw value was overridden by recipe: %v", got)
	}
}

func TestUnknownKeyReturnsAbsent(t *testing.T) {
	reg := registry.New()
	e := New(reg, nil)
	s := session.New(nil)

	if _, ok := e.GetAttribute(s, "NOT_A_THING"); ok {
		t.Fatal("expected absence for unregistered, unset attribute")
	}
	if _, ok := e.GetMeasurement(s, "NOT_A_SENSOR", "NOT_A_COLUMN"); ok {
		t.Fatal("expected absence for unregistered, unset measurement")
	}
}
