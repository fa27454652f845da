package output

import (
	"errors"
	"io"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/rohankatakam/defectminer/internal/github"
	"github.com/rohankatakam/defectminer/internal/metrics"
)

const (
	highGiniSymbol = "triangle"
	lowGiniSymbol  = "circle"
	plotSymbolSize = 8
)

// ErrNoPlotData is returned when no project has contributions to plot
var ErrNoPlotData = errors.New("no available project to plot")

// GiniGroups splits available projects into high and low inequality at the
// median Gini index. Projects at the median go to the high group.
func GiniGroups(results []github.ProjectGini) (high, low []github.ProjectGini) {
	var available []github.ProjectGini
	for _, r := range results {
		if r.Available {
			available = append(available, r)
		}
	}
	if len(available) == 0 {
		return nil, nil
	}

	values := make([]float64, len(available))
	for i, r := range available {
		values[i] = r.Gini
	}
	sort.Float64s(values)
	median := values[len(values)/2]
	if len(values)%2 == 0 {
		median = (values[len(values)/2-1] + values[len(values)/2]) / 2
	}

	for _, r := range available {
		if r.Gini >= median {
			high = append(high, r)
		} else {
			low = append(low, r)
		}
	}
	return high, low
}

// RenderGiniPlot writes an HTML page with two charts: the normalised
// contribution curve of every project, and n_contributors against the Gini
// index. Triangles mark the high-inequality group, circles the low one.
func RenderGiniPlot(w io.Writer, results []github.ProjectGini) error {
	high, low := GiniGroups(results)
	if len(high)+len(low) == 0 {
		return ErrNoPlotData
	}

	page := components.NewPage()
	page.PageTitle = "Contributor inequality"
	page.AddCharts(
		contributionCurves(high, low),
		giniScatter(high, low),
	)
	return page.Render(w)
}

func contributionCurves(high, low []github.ProjectGini) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Contributions per contributor, normalized"}),
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "500px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Contributors, ordered by n. of contributions"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Share of contributions", Type: "value"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)

	longest := 0
	for _, group := range [][]github.ProjectGini{high, low} {
		for _, r := range group {
			longest = max(longest, len(r.Counts))
		}
	}
	ranks := make([]string, longest)
	for i := range ranks {
		ranks[i] = strconv.Itoa(i + 1)
	}
	line.SetXAxis(ranks)

	addCurves := func(group []github.ProjectGini, symbol string) {
		for _, r := range group {
			counts := append([]int(nil), r.Counts...)
			sort.Sort(sort.Reverse(sort.IntSlice(counts)))

			shares := metrics.Normalize(counts)
			data := make([]opts.LineData, len(shares))
			for i, s := range shares {
				data[i] = opts.LineData{Value: s, Symbol: symbol, SymbolSize: plotSymbolSize}
			}
			line.AddSeries(r.Name, data)
		}
	}
	addCurves(high, highGiniSymbol)
	addCurves(low, lowGiniSymbol)

	return line
}

func giniScatter(high, low []github.ProjectGini) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Gini index by number of contributors"}),
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "500px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "n_contributors", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "gini_index", Type: "value"}),
	)

	points := func(group []github.ProjectGini, symbol string) []opts.ScatterData {
		data := make([]opts.ScatterData, len(group))
		for i, r := range group {
			data[i] = opts.ScatterData{
				Name:       r.Name,
				Value:      []any{r.Contributors, r.Gini, r.Name},
				Symbol:     symbol,
				SymbolSize: plotSymbolSize * 2,
			}
		}
		return data
	}
	scatter.AddSeries("High Gini", points(high, highGiniSymbol))
	scatter.AddSeries("Low Gini", points(low, lowGiniSymbol))

	return scatter
}
