package zipimport

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"loadscout-backend/lib/restyutil"
	"loadscout-backend/services/store"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("services/zipimport")

var client = resty.New()

func init() {
	restyutil.InstrumentClient(client, tracer)
}

const insertBatch = 500

// Import replaces the zip-code table with the contents of a SimpleMaps
// uszips.csv, read from a local path or downloaded from an http(s) URL.
// Returns the number of imported rows.
func Import(ctx context.Context, db *gorm.DB, source string) (int, error) {
	ctx, span := tracer.Start(ctx, "Import")
	defer span.End()
	span.SetAttributes(attribute.String("source", source))

	reader, closer, err := open(ctx, source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not open dataset")
		return 0, err
	}
	defer closer()

	rows, skipped, err := parse(reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not parse dataset")
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("dataset %q contains no usable rows", source)
	}
	slog.InfoContext(ctx, "parsed zip dataset", "rows", len(rows), "skipped", skipped)

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&store.ZipCode{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, insertBatch).Error
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "import transaction failed")
		return 0, err
	}

	slog.InfoContext(ctx, "imported zip codes", "count", len(rows))
	return len(rows), nil
}

func open(ctx context.Context, source string) (io.Reader, func(), error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		res, err := client.R().SetContext(ctx).Get(source)
		if err != nil {
			return nil, nil, err
		}
		if res.StatusCode() != 200 {
			return nil, nil, fmt.Errorf("dataset download failed with status %d", res.StatusCode())
		}
		return bytes.NewReader(res.Body()), func() {}, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func parse(r io.Reader) ([]store.ZipCode, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, 0, err
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"zip", "lat", "lng", "city", "state_id"} {
		if _, ok := col[required]; !ok {
			return nil, 0, fmt.Errorf("dataset is missing the %q column", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []store.ZipCode
	skipped := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		lat, latErr := strconv.ParseFloat(field(record, "lat"), 64)
		lng, lngErr := strconv.ParseFloat(field(record, "lng"), 64)
		zip := field(record, "zip")
		city := field(record, "city")
		if zip == "" || city == "" || latErr != nil || lngErr != nil {
			skipped++
			continue
		}

		population, _ := strconv.Atoi(field(record, "population"))
		density, _ := strconv.ParseFloat(field(record, "density"), 64)
		rows = append(rows, store.ZipCode{
			Zip:        zip,
			Lat:        lat,
			Lng:        lng,
			City:       city,
			StateID:    field(record, "state_id"),
			StateName:  field(record, "state_name"),
			CountyName: field(record, "county_name"),
			Population: population,
			Density:    density,
		})
	}
	return rows, skipped, nil
}
