package output

import "github.com/dcshock/planpipe/pipeline"

// DemandForecast is one month of the demand forecast for a product.
type DemandForecast struct {
	Month      string  `json:"month" yaml:"month"`
	Product    string  `json:"product" yaml:"product"`
	Forecast   float64 `json:"forecast" yaml:"forecast"`
	Actual     float64 `json:"actual,omitempty" yaml:"actual,omitempty"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// MasterPlanItem is the supply/demand balance of one plant. A negative Gap is a shortfall.
type MasterPlanItem struct {
	Plant       string  `json:"plant" yaml:"plant"`
	Supply      float64 `json:"supply" yaml:"supply"`
	Demand      float64 `json:"demand" yaml:"demand"`
	Gap         float64 `json:"gap" yaml:"gap"`
	Utilization float64 `json:"utilization" yaml:"utilization"`
}

// ScheduleItem is one production block on a line. Start and End are HH:MM.
type ScheduleItem struct {
	ID       string  `json:"id" yaml:"id"`
	Line     string  `json:"line" yaml:"line"`
	Product  string  `json:"product" yaml:"product"`
	Start    string  `json:"start" yaml:"start"`
	End      string  `json:"end" yaml:"end"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
	Color    string  `json:"color,omitempty" yaml:"color,omitempty"`
}

type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Route is one vehicle's tour. Load is the fraction of capacity used.
type Route struct {
	Vehicle     string       `json:"vehicle" yaml:"vehicle"`
	Stops       []string     `json:"stops" yaml:"stops"`
	Distance    float64      `json:"distance" yaml:"distance"`
	Load        float64      `json:"load" yaml:"load"`
	Coordinates []Coordinate `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
}

// DemandPlan is the result of Demand Planning.
type DemandPlan struct {
	KPIs      []pipeline.KPI   `json:"kpis" yaml:"kpis"`
	Forecasts []DemandForecast `json:"forecasts" yaml:"forecasts"`
}

// MasterPlan is the result of Master Planning.
type MasterPlan struct {
	KPIs  []pipeline.KPI   `json:"kpis" yaml:"kpis"`
	Plans []MasterPlanItem `json:"plans" yaml:"plans"`
}

// Shortfalls returns the plants whose demand exceeds supply.
func (p MasterPlan) Shortfalls() []MasterPlanItem {
	var out []MasterPlanItem
	for _, it := range p.Plans {
		if it.Gap < 0 {
			out = append(out, it)
		}
	}
	return out
}

// FactorySchedule is the result of Factory Planning.
type FactorySchedule struct {
	KPIs     []pipeline.KPI `json:"kpis" yaml:"kpis"`
	Schedule []ScheduleItem `json:"schedule" yaml:"schedule"`
}

// Lines returns the schedule grouped by line, in order of first appearance.
func (s FactorySchedule) Lines() [][]ScheduleItem {
	index := make(map[string]int)
	var out [][]ScheduleItem
	for _, it := range s.Schedule {
		i, ok := index[it.Line]
		if !ok {
			i = len(out)
			index[it.Line] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], it)
	}
	return out
}

// TransportPlan is the result of Transport Planning.
type TransportPlan struct {
	KPIs   []pipeline.KPI `json:"kpis" yaml:"kpis"`
	Routes []Route        `json:"routes" yaml:"routes"`
}

// RouteDistance is the sum of the routes' distances.
func (p TransportPlan) RouteDistance() float64 {
	var total float64
	for _, r := range p.Routes {
		total += r.Distance
	}
	return total
}

// Results holds one result per stage, as laid out in a results file.
type Results struct {
	DP DemandPlan      `yaml:"dp"`
	MP MasterPlan      `yaml:"mp"`
	FP FactorySchedule `yaml:"fp"`
	TP TransportPlan   `yaml:"tp"`
}
