package app

import (
	"context"
	"net/http"

	"github.com/shandysiswandi/csvpass/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkglog"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/csvpass/internal/pkg/pkguid"
)

// Options come from the command line and win over the config file.
type Options struct {
	ConfigPath string
	Mode       string
}

type App struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options

	// configuration
	config pkgconfig.Config

	// libraries
	uuid      pkguid.StringID
	taskID    pkguid.StringID
	goroutine *pkgroutine.Manager

	// server
	router     *pkgrouter.Router
	httpServer *http.Server

	//
	closerFn map[string]func(context.Context) error
}

func New(opts Options) *App {
	pkglog.InitLogging(pkglog.DefaultService, "info")

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
	}

	app.initConfig()
	app.initLibraries()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
