// Package detect infers how to run a web project's development server from
// the files in its root directory.
package detect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/entrhq/guitest/pkg/config"
)

// Type identifies a project framework.
type Type string

const (
	TypeNextJS  Type = "nextjs"
	TypeVite    Type = "vite"
	TypeCRA     Type = "cra"
	TypeRemix   Type = "remix"
	TypeExpress Type = "express"
	TypeFastify Type = "fastify"
	TypeDjango  Type = "django"
	TypeFlask   Type = "flask"
	TypeNode    Type = "node"
	TypeUnknown Type = "unknown"
)

// Project is what detection found. Zero fields mean "no opinion".
type Project struct {
	Type         Type          `json:"type"`
	Name         string        `json:"name,omitempty"`
	Dir          string        `json:"dir"`
	BuildCommand string        `json:"buildCommand,omitempty"`
	DevCommand   string        `json:"devCommand,omitempty"`
	Port         int           `json:"devPort,omitempty"`
	URL          string        `json:"devUrl,omitempty"`
	HealthPath   string        `json:"healthCheckPath,omitempty"`
	StartupWait  time.Duration `json:"-"`
}

// MarshalJSON adds startupWaitMs.
func (p Project) MarshalJSON() ([]byte, error) {
	type plain Project
	return json.Marshal(struct {
		plain
		StartupWaitMs int64 `json:"startupWaitMs,omitempty"`
	}{plain(p), p.StartupWait.Milliseconds()})
}

// DevServer returns the dev-server layer contributed by detection.
func (p *Project) DevServer() config.DevServerConfig {
	return config.DevServerConfig{
		Command:     p.DevCommand,
		URL:         p.URL,
		Port:        p.Port,
		HealthPath:  p.HealthPath,
		StartupWait: p.StartupWait,
	}
}

type packageJSON struct {
	Name            string            `json:"name"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func (p *packageJSON) has(dep string) bool {
	_, ok := p.Dependencies[dep]
	if !ok {
		_, ok = p.DevDependencies[dep]
	}
	return ok
}

// script returns "npm run <name>" for the first script that exists, with
// start mapped to "npm start", or fallback.
func (p *packageJSON) script(fallback string, names ...string) string {
	for _, name := range names {
		if _, ok := p.Scripts[name]; ok {
			if name == "start" {
				return "npm start"
			}
			return "npm run " + name
		}
	}
	return fallback
}

var portPattern = regexp.MustCompile(`(?:PORT=|--port[=\s])(\d+)`)

// scriptPort finds an explicit port in any script. Scripts are scanned in
// name order so the result does not depend on map iteration.
func (p *packageJSON) scriptPort() int {
	names := make([]string, 0, len(p.Scripts))
	for name := range p.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if m := portPattern.FindStringSubmatch(p.Scripts[name]); m != nil {
			if port, err := strconv.Atoi(m[1]); err == nil {
				return port
			}
		}
	}
	return 0
}

// Detect inspects dir. It fails only when package.json exists but cannot be
// read or parsed.
func Detect(dir string) (*Project, error) {
	pkgPath := filepath.Join(dir, "package.json")
	if data, err := os.ReadFile(pkgPath); err == nil {
		var pkg packageJSON
		if err := json.Unmarshal(data, &pkg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", pkgPath, err)
		}
		return detectNode(dir, &pkg), nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", pkgPath, err)
	}

	if exists(dir, "pyproject.toml") || exists(dir, "requirements.txt") || exists(dir, "manage.py") {
		return detectPython(dir), nil
	}
	return &Project{Type: TypeUnknown, Dir: dir}, nil
}

func detectNode(dir string, pkg *packageJSON) *Project {
	p := &Project{
		Dir:          dir,
		Name:         pkg.Name,
		BuildCommand: pkg.script("npm run build", "build"),
		HealthPath:   "/",
	}

	switch {
	case pkg.has("next"):
		p.Type = TypeNextJS
		p.DevCommand = pkg.script("npm run dev", "dev")
		p.Port, p.StartupWait = 3000, 5*time.Second
	case pkg.has("vite"):
		p.Type = TypeVite
		p.DevCommand = pkg.script("npm run dev", "dev")
		p.Port, p.StartupWait = 5173, 3*time.Second
	case pkg.has("react-scripts"):
		p.Type = TypeCRA
		p.DevCommand = pkg.script("npm start", "start")
		p.Port, p.StartupWait = 3000, 10*time.Second
	case pkg.has("@remix-run/node") || pkg.has("@remix-run/react"):
		p.Type = TypeRemix
		p.DevCommand = pkg.script("npm run dev", "dev")
		p.Port, p.StartupWait = 3000, 5*time.Second
	case pkg.has("express") || pkg.has("fastify"):
		p.Type = TypeExpress
		if !pkg.has("express") {
			p.Type = TypeFastify
		}
		p.DevCommand = pkg.script("npm start", "dev", "start")
		p.Port = pkg.scriptPort()
		if p.Port == 0 {
			p.Port = 3000
		}
		p.StartupWait = 3 * time.Second
		p.HealthPath = "/health"
	default:
		p.Type = TypeNode
		p.DevCommand = pkg.script("", "dev", "start")
		p.Port, p.StartupWait = 3000, 5*time.Second
		p.HealthPath = ""
		if _, ok := pkg.Scripts["build"]; !ok {
			p.BuildCommand = ""
		}
	}

	if p.Name == "" {
		p.Name = string(p.Type) + "-app"
	}
	p.URL = "http://localhost:" + strconv.Itoa(p.Port)
	return p
}

func detectPython(dir string) *Project {
	p := &Project{
		Dir:          dir,
		Name:         filepath.Base(dir),
		BuildCommand: "pip install -r requirements.txt",
		HealthPath:   "/",
	}

	switch {
	case exists(dir, "manage.py"):
		p.Type = TypeDjango
		p.DevCommand = "python manage.py runserver 8000"
		p.Port, p.StartupWait = 8000, 5*time.Second
	case mentionsFlask(dir, "app.py"):
		p.Type = TypeFlask
		p.DevCommand = "flask run --port 5000"
		p.Port, p.StartupWait = 5000, 3*time.Second
	case mentionsFlask(dir, "main.py"):
		p.Type = TypeFlask
		p.DevCommand = "python main.py"
		p.Port, p.StartupWait = 5000, 3*time.Second
	default:
		return &Project{Type: TypeUnknown, Dir: dir, Name: p.Name}
	}

	p.URL = "http://localhost:" + strconv.Itoa(p.Port)
	return p
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

func mentionsFlask(dir, name string) bool {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "flask")
}
