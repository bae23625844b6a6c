package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/oratora/internal/adapters/repository"
	"github.com/okian/oratora/internal/config"
	"github.com/okian/oratora/internal/domain/scoring"
)

func TestNewScorer(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)

		convey.Convey("Then the simulated scorer is selected", func() {
			sc, err := newScorer(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			_, ok := sc.(*scoring.SimulatedScorer)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("When gemini is selected without a key", func() {
			cfg.ScoringProvider = config.ProviderGemini
			_, err := newScorer(ctx, cfg)

			convey.Convey("Then construction fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, scoring.ErrMissingAPIKey), convey.ShouldBeTrue)
			})
		})
	})
}

func TestNewStore(t *testing.T) {
	convey.Convey("Given no database_url", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)

		convey.Convey("Then history is kept in memory", func() {
			st, closeStore, err := newStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer closeStore()
			_, ok := st.(*repository.MemoryStore)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("When the database_url cannot be parsed", func() {
			cfg.DatabaseURL = "postgres://%zz"
			_, _, err := newStore(ctx, cfg)

			convey.Convey("Then an error is returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given a context that ends shortly", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		convey.Convey("Then the updater returns without panicking", func() {
			convey.So(func() { updateSystemMetrics(ctx) }, convey.ShouldNotPanic)
		})
	})
}
