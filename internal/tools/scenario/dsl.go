// Package scenario loads Lua deck scenarios and replays them against the deck
// service, checking historical snapshots and comparisons along the way.
//
// A scenario script builds its steps and returns the Scenario:
//
//	local s = Scenario.new("lightning")
//	s:deck({name = "Lightning Box"})
//	s:add("Pikachu ex", "pokemon", 2)
//	s:commit("initial list")
//	s:set("Pikachu ex", 4)
//	s:commit("max pikachu")
//	s:commit("nothing"):fails("NO_CHANGES")
//	s:expect_version(1, {["Pikachu ex"] = 2})
//	s:expect_compare(1, 2, {["Pikachu ex"] = {2, 4}})
//	return s
package scenario

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const (
	scenarioTypeName = "scenario"
	stepTypeName     = "scenario_step"
)

// Step kinds.
const (
	StepDeck          = "deck"
	StepAdd           = "add"
	StepSet           = "set"
	StepRemove        = "remove"
	StepCommit        = "commit"
	StepRevert        = "revert"
	StepExpectVersion = "expect_version"
	StepExpectCompare = "expect_compare"
)

// Scenario is an ordered list of steps loaded from a script.
type Scenario struct {
	Name  string
	Steps []Step
}

// Step is one scripted action or expectation.
type Step struct {
	Kind string
	Args map[string]any
	// ExpectError is the error code the step must fail with, if any.
	ExpectError string
}

// stepRef lets scripts decorate the step a method just appended.
type stepRef struct {
	scenario *Scenario
	index    int
}

// LoadFile runs the Lua script at path and returns the Scenario it builds.
// An unnamed scenario takes the file's base name.
func LoadFile(path string) (*Scenario, error) {
	state := newState()
	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	scenario, err := run(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

// Load runs source as a scenario script. name labels Lua error messages.
func Load(name, source string) (*Scenario, error) {
	state := newState()
	if err := lua.LoadBuffer(state, source, name, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	scenario, err := run(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = name
	}
	return scenario, nil
}

func newState() *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerScenarioType(state)
	registerStepType(state)
	registerScenarioConstructor(state)
	return state
}

func run(state *lua.State) (*Scenario, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	return scenario, nil
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerStepType(state *lua.State) {
	lua.NewMetaTable(state, stepTypeName)
	state.NewTable()
	lua.SetFunctions(state, stepMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{{Name: "new", Function: scenarioNew}}, 0)
	state.SetGlobal("Scenario")
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	state.PushUserData(&Scenario{Name: name})
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "deck", Function: scenarioDeck},
	{Name: "add", Function: scenarioAdd},
	{Name: "set", Function: scenarioSet},
	{Name: "remove", Function: scenarioRemove},
	{Name: "commit", Function: scenarioCommit},
	{Name: "revert", Function: scenarioRevert},
	{Name: "expect_version", Function: scenarioExpectVersion},
	{Name: "expect_compare", Function: scenarioExpectCompare},
}

var stepMethods = []lua.RegistryFunction{
	{Name: "fails", Function: stepFails},
}

func scenarioDeck(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	return pushStep(state, scenario, StepDeck, tableToMap(state, 2))
}

func scenarioAdd(state *lua.State) int {
	scenario := checkScenario(state)
	name := lua.CheckString(state, 2)
	category := lua.CheckString(state, 3)
	count := lua.OptInteger(state, 4, 1)
	return pushStep(state, scenario, StepAdd, map[string]any{"name": name, "category": category, "count": count})
}

func scenarioSet(state *lua.State) int {
	scenario := checkScenario(state)
	name := lua.CheckString(state, 2)
	count := lua.CheckInteger(state, 3)
	return pushStep(state, scenario, StepSet, map[string]any{"name": name, "count": count})
}

func scenarioRemove(state *lua.State) int {
	scenario := checkScenario(state)
	name := lua.CheckString(state, 2)
	return pushStep(state, scenario, StepRemove, map[string]any{"name": name})
}

func scenarioCommit(state *lua.State) int {
	scenario := checkScenario(state)
	message := lua.OptString(state, 2, "")
	return pushStep(state, scenario, StepCommit, map[string]any{"message": message})
}

func scenarioRevert(state *lua.State) int {
	scenario := checkScenario(state)
	seq := lua.CheckInteger(state, 2)
	return pushStep(state, scenario, StepRevert, map[string]any{"seq": seq})
}

func scenarioExpectVersion(state *lua.State) int {
	scenario := checkScenario(state)
	seq := lua.CheckInteger(state, 2)
	lua.CheckType(state, 3, lua.TypeTable)
	cards := tableToMap(state, 3)
	return pushStep(state, scenario, StepExpectVersion, map[string]any{"seq": seq, "cards": cards})
}

func scenarioExpectCompare(state *lua.State) int {
	scenario := checkScenario(state)
	from := lua.CheckInteger(state, 2)
	to := lua.CheckInteger(state, 3)
	lua.CheckType(state, 4, lua.TypeTable)
	changes := tableToMap(state, 4)
	return pushStep(state, scenario, StepExpectCompare, map[string]any{"from": from, "to": to, "changes": changes})
}

func stepFails(state *lua.State) int {
	ud := lua.CheckUserData(state, 1, stepTypeName)
	ref, ok := ud.(*stepRef)
	if !ok || ref == nil {
		lua.Errorf(state, "invalid scenario step")
		return 0
	}
	code := lua.CheckString(state, 2)
	if ref.index < 0 || ref.index >= len(ref.scenario.Steps) {
		lua.Errorf(state, "scenario step is out of range")
		return 0
	}
	ref.scenario.Steps[ref.index].ExpectError = code
	return 0
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

// pushStep appends a step and returns a handle scripts can chain on.
func pushStep(state *lua.State, scenario *Scenario, kind string, data map[string]any) int {
	if data == nil {
		data = map[string]any{}
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: data})
	state.PushUserData(&stepRef{scenario: scenario, index: len(scenario.Steps) - 1})
	lua.SetMetaTableNamed(state, stepTypeName)
	return 1
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

// tableToGo returns a []any for sequences and a map otherwise.
func tableToGo(state *lua.State, index int) any {
	index = state.AbsIndex(index)
	maxIndex := 0
	count := 0
	isArray := true
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if idx, ok := state.ToInteger(-2); ok && state.TypeOf(-2) == lua.TypeNumber && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}
	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
