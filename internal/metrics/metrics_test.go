package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
	"go.opencensus.io/stats/view"
)

func TestRecordUpdate(t *testing.T) {
	is := is.New(t)
	is.NoErr(Register())
	is.NoErr(Register())

	ctx := context.Background()
	RecordUpdate(ctx, time.Now(), nil)
	RecordUpdate(ctx, time.Now(), errors.New("boom"))
	RecordUpdate(ctx, time.Now(), nil)

	rows, err := view.RetrieveData(UpdatesView.Name)
	is.NoErr(err)

	counts := make(map[string]int64)
	for _, row := range rows {
		data, ok := row.Data.(*view.CountData)
		is.True(ok)

		for _, tg := range row.Tags {
			if tg.Key == KeyStatus {
				counts[tg.Value] = data.Value
			}
		}
	}

	is.True(counts[StatusOK] >= 2)
	is.True(counts[StatusFailed] >= 1)
}

func TestRecordPage(t *testing.T) {
	is := is.New(t)
	is.NoErr(Register())

	RecordPage(context.Background(), "metrics-test-class", 7, nil)
	RecordPage(context.Background(), "metrics-test-class", 0, errors.New("boom"))

	rows, err := view.RetrieveData(TwinsQueriedView.Name)
	is.NoErr(err)

	var found bool
	for _, row := range rows {
		for _, tg := range row.Tags {
			if tg.Key == KeyClass && tg.Value == "metrics-test-class" {
				found = true
				is.Equal(row.Data.(*view.SumData).Value, float64(7))
			}
		}
	}

	is.True(found)
}

func TestNewExporter(t *testing.T) {
	pe, err := NewExporter("twinpatcher_test")
	if err != nil {
		t.Fatal(err)
	}

	if pe == nil {
		t.Fatal("exp exporter")
	}
}
