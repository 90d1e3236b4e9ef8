// Package chart renders projection series as images.
package chart

import (
	"errors"
	"strconv"

	charts "github.com/vicanso/go-charts/v2"

	"finpilot/internal/tvm"
)

const (
	width  = 900
	height = 500
)

// ProjectionPNG draws points as a line chart, one x label per year.
func ProjectionPNG(points []tvm.ProjectionPoint, title string) ([]byte, error) {
	if len(points) == 0 {
		return nil, errors.New("no projection points")
	}

	values := make([]float64, len(points))
	labels := make([]string, len(points))
	for i, p := range points {
		values[i] = p.Value
		labels[i] = "Y" + strconv.Itoa(p.Year)
	}

	split := len(points) - 1
	if split > 10 {
		split = 10
	}
	if split < 1 {
		split = 1
	}

	painter, err := charts.LineRender([][]float64{values},
		charts.PNGTypeOption(),
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: split}),
		charts.YAxisOptionFunc(charts.YAxisOption{DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(width),
		charts.HeightOptionFunc(height),
	)
	if err != nil {
		return nil, err
	}
	return painter.Bytes()
}
