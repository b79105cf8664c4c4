package session

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/featherline/rarity-mapper/internal/model"
)

// Controller is the single owner of session state mutation. Every transition
// runs a full recompute so no view is left stale; the resulting view model is
// returned to the caller and retained for View.
type Controller struct {
	mu         sync.Mutex
	state      State
	clock      clockwork.Clock
	boundaries BoundaryLookup
	vm         ViewModel
}

// ControllerOption configures the controller.
type ControllerOption func(*Controller)

// WithClock injects a clock for the date-window cutoff.
func WithClock(clk clockwork.Clock) ControllerOption {
	return func(c *Controller) { c.clock = clk }
}

// WithBoundaryLookup wires county polygon resolution for cluster placement.
func WithBoundaryLookup(lookup BoundaryLookup) ControllerOption {
	return func(c *Controller) { c.boundaries = lookup }
}

// NewController creates a controller with default filters and no selection.
func NewController(region string, opts ...ControllerOption) *Controller {
	c := &Controller{
		clock: clockwork.NewRealClock(),
		state: State{Region: region, Filters: DefaultFilters()},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.vm = Recompute(c.state, c.clock.Now(), c.boundaries)
	return c
}

// View returns the most recent view model.
func (c *Controller) View() ViewModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vm
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) apply(mutate func(*State)) ViewModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	mutate(&c.state)
	c.vm = Recompute(c.state, c.clock.Now(), c.boundaries)
	return c.vm
}

// SetData replaces both datasets after a refresh.
func (c *Controller) SetData(notable, lower48 []model.Observation) ViewModel {
	return c.apply(func(s *State) {
		s.Notable = notable
		s.Lower48 = lower48
		s.Status = fmt.Sprintf("Loaded %d sightings.", len(notable))
	})
}

// SelectCounty makes sel the active selection. Selecting the already-selected
// county again re-confirms it rather than deselecting.
func (c *Controller) SelectCounty(sel Selection) ViewModel {
	sel.Active = true
	return c.apply(func(s *State) {
		s.Selection = sel
		s.Status = "Filtering by county: " + sel.Name
	})
}

// ClearSelection returns to the no-selection view without touching filters.
func (c *Controller) ClearSelection() ViewModel {
	return c.apply(func(s *State) {
		s.Selection = Selection{}
	})
}

// SetRegion switches the active region. County geometry is not guaranteed
// valid across regions, so any selection is forcibly cleared.
func (c *Controller) SetRegion(region string) ViewModel {
	return c.apply(func(s *State) {
		if s.Region != region {
			zap.L().Debug("region changed", zap.String("from", s.Region), zap.String("to", region))
		}
		s.Region = region
		s.Selection = Selection{}
	})
}

// ClearFilters resets every filter to its default and drops the selection.
func (c *Controller) ClearFilters() ViewModel {
	return c.apply(func(s *State) {
		s.Filters = DefaultFilters()
		s.Selection = Selection{}
	})
}

// SetDaysBack sets the date window, clamped to the supported range.
func (c *Controller) SetDaysBack(days int) ViewModel {
	return c.apply(func(s *State) {
		s.Filters.DaysBack = ClampDaysBack(days)
	})
}

// SetCountyMinRarity sets the threshold for the county notable views.
func (c *Controller) SetCountyMinRarity(code model.RarityCode) ViewModel {
	return c.apply(func(s *State) {
		s.Filters.CountyMinRarity = code
	})
}

// SetLower48MinRarity sets the threshold for the nationwide rarity views.
func (c *Controller) SetLower48MinRarity(code model.RarityCode) ViewModel {
	return c.apply(func(s *State) {
		s.Filters.Lower48MinRarity = code
	})
}

// SetSpecies sets the species filter; empty means all species.
func (c *Controller) SetSpecies(species string) ViewModel {
	return c.apply(func(s *State) {
		s.Filters.Species = species
	})
}

// SetShowLower48Markers toggles nationwide markers on the map.
func (c *Controller) SetShowLower48Markers(show bool) ViewModel {
	return c.apply(func(s *State) {
		s.ShowLower48Markers = show
	})
}

// SetStatus records an outcome message (loading, error) without touching any
// other state.
func (c *Controller) SetStatus(msg string) ViewModel {
	return c.apply(func(s *State) {
		s.Status = msg
	})
}
