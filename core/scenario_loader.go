// core/scenario_loader.go
package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/signalsfoundry/parcel-simulator/model"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidScenario is returned for structurally valid files that
	// describe an impossible world.
	ErrInvalidScenario = errors.New("invalid scenario")
	// ErrUnknownRobot is returned by NewRobot for unsupported robot kinds.
	ErrUnknownRobot = errors.New("unknown robot")
)

// DefaultRandomParcels is used when a scenario lists neither parcels nor
// random_parcels.
const DefaultRandomParcels = 5

// Robot kinds accepted by NewRobot and scenario files.
const (
	RobotRandom = "random"
	RobotRoute  = "route"
	RobotGoal   = "goal"
)

// Scenario is a fully validated scenario ready to run.
type Scenario struct {
	Graph         Graph
	Start         model.Location
	Parcels       []model.Parcel
	RandomParcels int
	Robot         string
	Seed          int64
	MaxTurns      int
	MailRoute     []model.Location
}

// scenarioYAML is the on-disk shape; kept unexported so it can evolve.
type scenarioYAML struct {
	Roads         []string         `yaml:"roads"`
	Start         string           `yaml:"start"`
	Parcels       []model.Parcel   `yaml:"parcels"`
	RandomParcels *int             `yaml:"random_parcels"`
	Robot         string           `yaml:"robot"`
	Seed          int64            `yaml:"seed"`
	MaxTurns      int              `yaml:"max_turns"`
	MailRoute     []model.Location `yaml:"mail_route"`
}

// LoadScenarioFile opens path and decodes it with LoadScenario.
func LoadScenarioFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadScenarioFile: %w", err)
	}
	defer f.Close()
	return LoadScenario(f)
}

// LoadScenario decodes a YAML scenario from r. Missing roads fall back to the
// village network (and its mail route), a missing start to DefaultStart, a
// missing robot to "goal" and a scenario without any parcels to
// DefaultRandomParcels random ones.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var payload scenarioYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	roads := payload.Roads
	route := payload.MailRoute
	if len(roads) == 0 {
		roads = VillageRoads
		if len(route) == 0 {
			route = MailRoute
		}
	}

	g, err := BuildGraph(roads)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}

	sc := &Scenario{
		Graph:         g,
		Start:         model.Location(strings.TrimSpace(payload.Start)),
		Parcels:       payload.Parcels,
		Robot:         strings.ToLower(strings.TrimSpace(payload.Robot)),
		Seed:          payload.Seed,
		MaxTurns:      payload.MaxTurns,
		MailRoute:     route,
	}
	if sc.Start == "" {
		sc.Start = DefaultStart
	}
	switch {
	case payload.RandomParcels != nil:
		sc.RandomParcels = *payload.RandomParcels
	case len(payload.Parcels) == 0:
		sc.RandomParcels = DefaultRandomParcels
	}
	if sc.Robot == "" {
		sc.Robot = RobotGoal
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}
	return sc, nil
}

func (sc *Scenario) validate() error {
	if _, ok := sc.Graph[sc.Start]; !ok {
		return fmt.Errorf("%w: start %q is not on any road", ErrInvalidScenario, sc.Start)
	}
	for i, p := range sc.Parcels {
		if _, ok := sc.Graph[p.Place]; !ok {
			return fmt.Errorf("%w: parcel %d place %q is not on any road", ErrInvalidScenario, i, p.Place)
		}
		if _, ok := sc.Graph[p.Address]; !ok {
			return fmt.Errorf("%w: parcel %d address %q is not on any road", ErrInvalidScenario, i, p.Address)
		}
	}
	if sc.RandomParcels < 0 {
		return fmt.Errorf("%w: random_parcels must be >= 0, got %d", ErrInvalidScenario, sc.RandomParcels)
	}
	if sc.MaxTurns < 0 {
		return fmt.Errorf("%w: max_turns must be >= 0, got %d", ErrInvalidScenario, sc.MaxTurns)
	}
	for i, loc := range sc.MailRoute {
		if _, ok := sc.Graph[loc]; !ok {
			return fmt.Errorf("%w: mail_route step %d %q is not on any road", ErrInvalidScenario, i, loc)
		}
	}
	switch sc.Robot {
	case RobotRandom, RobotRoute, RobotGoal:
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidScenario, ErrUnknownRobot, sc.Robot)
	}
	if sc.Robot == RobotRoute && len(sc.MailRoute) == 0 {
		return fmt.Errorf("%w: route robot needs a mail_route", ErrInvalidScenario)
	}
	return nil
}

// InitialState builds the starting state: the explicit parcels followed by
// RandomParcels generated from rnd.
func (sc *Scenario) InitialState(rnd IntSource) WorldState {
	parcels := append([]model.Parcel(nil), sc.Parcels...)
	parcels = append(parcels, RandomParcels(sc.Graph, rnd, sc.RandomParcels)...)
	return NewWorldState(sc.Start, parcels)
}

// NewRobot constructs a robot of the given kind over g. The route is only
// used by the route robot and rnd only by the random robot.
func NewRobot(kind string, g Graph, route []model.Location, rnd IntSource) (Robot, error) {
	switch strings.ToLower(kind) {
	case RobotRandom:
		if rnd == nil {
			return nil, fmt.Errorf("random robot: nil random source")
		}
		return RandomRobot{Graph: g, Rand: rnd}, nil
	case RobotRoute:
		if len(route) == 0 {
			return nil, fmt.Errorf("route robot: empty route")
		}
		return RouteRobot{Route: route}, nil
	case RobotGoal:
		return GoalOrientedRobot{Graph: g}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownRobot, kind)
	}
}
