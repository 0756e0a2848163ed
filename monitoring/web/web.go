// Package web embeds the page that the cohsim monitor serves.
package web

import (
	"embed"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// DevEnv is the environment variable that makes Assets read the page from
// the source tree instead of the binary.
const DevEnv = "COHSIM_MONITOR_DEV"

//go:embed dist/*
var dist embed.FS

// Assets returns the file system holding index.html.
func Assets() http.FileSystem {
	if dir, ok := sourceDir(); ok {
		log.Printf("monitor: serving pages from %s", dir)
		return http.Dir(dir)
	}

	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		log.Panic(err)
	}

	return http.FS(sub)
}

func sourceDir() (string, bool) {
	on, err := strconv.ParseBool(os.Getenv(DevEnv))
	if err != nil || !on {
		return "", false
	}

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		log.Panic("monitor: cannot locate the page sources")
	}

	return filepath.Join(filepath.Dir(file), "dist"), true
}
