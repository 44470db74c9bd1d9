// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	healthfeature "github.com/maestranote/maestranote/internal/app/features/health"
	orchestrasfeature "github.com/maestranote/maestranote/internal/app/features/orchestras"
	rehearsalsfeature "github.com/maestranote/maestranote/internal/app/features/rehearsals"
	schoolyearsfeature "github.com/maestranote/maestranote/internal/app/features/schoolyears"
	studentsfeature "github.com/maestranote/maestranote/internal/app/features/students"
	teachersfeature "github.com/maestranote/maestranote/internal/app/features/teachers"
	cascadestore "github.com/maestranote/maestranote/internal/app/store/cascade"
	orchestrastore "github.com/maestranote/maestranote/internal/app/store/orchestras"
	rehearsalstore "github.com/maestranote/maestranote/internal/app/store/rehearsals"
	rosterstore "github.com/maestranote/maestranote/internal/app/store/roster"
	schoolyearstore "github.com/maestranote/maestranote/internal/app/store/schoolyears"
	studentstore "github.com/maestranote/maestranote/internal/app/store/students"
	teacherstore "github.com/maestranote/maestranote/internal/app/store/teachers"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point the MongoDB client and the
// resolved transaction capability are available in deps.
//
// This function:
//  1. Constructs the store layer against the shared database handle
//  2. Wraps the stores in feature handlers
//  3. Mounts each feature's subrouter on a chi router
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	yearStore := schoolyearstore.New(db)
	orchStore := orchestrastore.New(db)
	studentStore := studentstore.New(db)
	teacherStore := teacherstore.New(db)
	rosterStore := rosterstore.New(db, logger)
	rehearsalStore := rehearsalstore.New(db, deps.MongoClient, deps.TxnCapability, yearStore, logger)
	cascadeStore := cascadestore.New(db, deps.MongoClient, deps.TxnCapability, logger)

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	orchHandler := orchestrasfeature.NewHandler(orchStore, rosterStore, cascadeStore, logger)
	r.Mount("/orchestras", orchestrasfeature.Routes(orchHandler))

	studentHandler := studentsfeature.NewHandler(studentStore, cascadeStore, logger)
	r.Mount("/students", studentsfeature.Routes(studentHandler))

	teacherHandler := teachersfeature.NewHandler(teacherStore, cascadeStore, logger)
	r.Mount("/teachers", teachersfeature.Routes(teacherHandler))

	rehearsalHandler := rehearsalsfeature.NewHandler(rehearsalStore, logger)
	r.Mount("/rehearsals", rehearsalsfeature.Routes(rehearsalHandler))

	yearHandler := schoolyearsfeature.NewHandler(yearStore, logger)
	r.Mount("/school-years", schoolyearsfeature.Routes(yearHandler))

	return r, nil
}
