// diorama - terminal 3D scene viewer
// Load a GLTF/GLB model and look at it from any side, in mono, anaglyph or
// side-by-side stereo.
//
// Controls:
//
//	Mouse drag   - Orbit the camera, or turn the selected object
//	Click        - Select / deselect the object under the pointer
//	Scroll, +/-  - Zoom
//	Arrows       - Orbit the camera
//	Q/E          - Roll
//	W            - Cycle faces / wireframe / points / skeleton / normals
//	T            - Cycle textures
//	L            - Cycle lighting
//	B            - Cycle blending
//	3            - Cycle stereoscopic mode
//	C            - Toggle collision markers
//	O            - Toggle bounding boxes
//	A            - Toggle animation
//	N            - Toggle smooth normals
//	P            - Cycle projection
//	K            - Cycle skybox
//	R            - Reset camera
//	?            - Toggle HUD overlay
//	Esc          - Quit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/taigrr/diorama/pkg/config"
	"github.com/taigrr/diorama/pkg/event"
	"github.com/taigrr/diorama/pkg/math3d"
	"github.com/taigrr/diorama/pkg/models"
	"github.com/taigrr/diorama/pkg/pipeline"
	"github.com/taigrr/diorama/pkg/render"
	"github.com/taigrr/diorama/pkg/router"
	"github.com/taigrr/diorama/pkg/scene"
)

var (
	configPath  = flag.String("config", "", "Path to a TOML config file")
	texturePath = flag.String("texture", "", "Path to a texture image that replaces the model's (PNG/JPG)")
	targetFPS   = flag.Int("fps", 0, "Target FPS (overrides the config)")
	bgColor     = flag.String("bg", "", "Background color R,G,B in 0..255 (overrides the config)")
	statePath   = flag.String("state", "", "Restore the view from this YAML file and save it back on exit")
	logPath     = flag.String("log", "", "Log file (overrides the config)")
	verbose     = flag.Bool("v", false, "Log at info level")
	veryVerbose = flag.Bool("vv", false, "Log at debug level")
	quiet       = flag.Bool("q", false, "Log errors only")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "diorama - terminal 3D scene viewer\n\n")
		fmt.Fprintf(os.Stderr, "Usage: diorama [options] <model.glb|model.gltf>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  Mouse drag  - Orbit camera / turn selection\n")
		fmt.Fprintf(os.Stderr, "  Click       - Select object\n")
		fmt.Fprintf(os.Stderr, "  Scroll, +/- - Zoom\n")
		fmt.Fprintf(os.Stderr, "  W T L B 3   - Draw mode, textures, lights, blending, stereo\n")
		fmt.Fprintf(os.Stderr, "  C O A N     - Collision, boxes, animation, smooth normals\n")
		fmt.Fprintf(os.Stderr, "  P K R       - Projection, skybox, reset camera\n")
		fmt.Fprintf(os.Stderr, "  ?           - Toggle HUD overlay\n")
		fmt.Fprintf(os.Stderr, "  Esc         - Quit\n")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(flag.Arg(0), cfg); err != nil {
		slog.Error("viewer stopped", "err", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closeLog()
		os.Exit(1)
	}
}

// loadConfig reads -config, or the defaults, then applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, err
		}
	}
	if *targetFPS > 0 {
		cfg.Render.FPS = *targetFPS
	}
	if *bgColor != "" {
		bg, err := parseColor(*bgColor)
		if err != nil {
			return cfg, err
		}
		cfg.Render.Background = bg
	}
	if *logPath != "" {
		cfg.Log.File = *logPath
	}
	if lvl, ok := levelFromFlags(*veryVerbose, *verbose, *quiet); ok {
		cfg.Log.Level = lvl
	}
	return cfg, cfg.Validate()
}

// parseColor reads "R,G,B" with 0..255 components.
func parseColor(s string) ([4]float64, error) {
	var r, g, b int
	if _, err := fmt.Sscanf(s, "%d,%d,%d", &r, &g, &b); err != nil {
		return [4]float64{}, fmt.Errorf("parse -bg %q: %w", s, err)
	}
	for _, c := range []int{r, g, b} {
		if c < 0 || c > 255 {
			return [4]float64{}, fmt.Errorf("parse -bg %q: component %d out of range", s, c)
		}
	}
	return [4]float64{float64(r) / 255, float64(g) / 255, float64(b) / 255, 1}, nil
}

// levelFromFlags returns the most verbose level asked for, and false when
// no level flag is set.
func levelFromFlags(vv, v, q bool) (slog.Level, bool) {
	switch {
	case vv:
		return slog.LevelDebug, true
	case v:
		return slog.LevelInfo, true
	case q:
		return slog.LevelError, true
	}
	return 0, false
}

// setupLogging points the default logger at the log file; the terminal
// belongs to the viewer.
func setupLogging(c config.Log) (func(), error) {
	var w io.Writer = io.Discard
	closeFn := func() {}
	if c.File != "" {
		f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log: %w", err)
		}
		w = f
		closeFn = func() { f.Close() }
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.Level})))
	return closeFn, nil
}

func run(modelPath string, cfg config.Config) error {
	var texture []byte
	if *texturePath != "" {
		data, err := os.ReadFile(*texturePath)
		if err != nil {
			return fmt.Errorf("read texture: %w", err)
		}
		texture = data
	}

	// Create terminal
	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	// Enable mouse mode
	fmt.Fprint(os.Stdout, "\x1b[?1003h") // Enable any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // Enable SGR extended mouse mode

	cleanup := func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}

	v := newViewer(modelPath, cfg, width, height)

	if *statePath != "" {
		if err := v.restoreState(*statePath); err != nil {
			slog.Warn("view state not restored", "path", *statePath, "err", err)
		}
	}

	// Context for clean shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	loaded := make(chan error, 1)
	go func() {
		loaded <- models.NewGLTFLoader().Load(ctx, modelPath, v.scene)
	}()

	// Input is translated on the event goroutine and applied on this one,
	// between frames.
	actions := make(chan action, 64)
	in := &input{}
	go func() {
		for ev := range term.Events() {
			act := in.translate(ev)
			if act == nil {
				continue
			}
			select {
			case actions <- act:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Main loop
	targetDuration := time.Second / time.Duration(cfg.Render.FPS)

	for {
		select {
		case <-ctx.Done():
			cleanup()
			return v.saveState(*statePath)
		case err := <-loaded:
			v.onLoaded(err, texture)
		default:
		}

		now := time.Now()

	drain:
		for {
			select {
			case act := <-actions:
				if act(v, term) == errQuit {
					cancel()
				}
			default:
				break drain
			}
		}

		v.frame()

		area := term.Bounds()
		v.device.Framebuffer().Draw(term, area)
		v.hud.Draw(term, area)
		if err := term.Display(); err != nil {
			cleanup()
			return fmt.Errorf("display: %w", err)
		}

		// Frame timing
		elapsed := time.Since(now)
		if elapsed < targetDuration {
			time.Sleep(targetDuration - elapsed)
		}
	}
}

// viewer is everything the frame loop and the input actions touch.
type viewer struct {
	bus      *event.Bus
	scene    *scene.Scene
	device   *render.Device
	renderer *pipeline.Renderer
	router   *router.Router
	hud      *hud

	stopped bool
}

// newViewer wires the scene, the pipeline and the router on one bus for a
// terminal of cols x rows cells.
func newViewer(modelPath string, cfg config.Config, cols, rows int) *viewer {
	bus := &event.Bus{}

	cam := render.NewCamera(math3d.V3(0, 0, cfg.Scene.CameraDistance), math3d.Zero3(), math3d.Up())
	cam.SetFrameRate(cfg.Render.FPS)

	sc := scene.New(cam,
		scene.WithBus(bus),
		scene.WithUnit(cfg.Scene.Unit),
		scene.WithRescaleBand(cfg.Scene.RescaleBand[0], cfg.Scene.RescaleBand[1]),
		scene.WithLightPeriod(cfg.Scene.LightPeriod.Duration),
		scene.WithSkyBoxSize(cfg.Render.SkyBoxSize),
		scene.WithOrbitStep(cfg.Scene.OrbitStep),
	)

	dev := render.NewDevice(cols, rows*2)
	rend := pipeline.New(dev, sc,
		pipeline.WithBus(bus),
		pipeline.WithBackground(render.FromFloats(cfg.Render.Background)),
		pipeline.WithUnit(cfg.Scene.Unit),
		pipeline.WithPlanes(cfg.Render.Near, cfg.Render.Far),
		pipeline.WithSkyBoxSize(cfg.Render.SkyBoxSize),
		pipeline.WithEyeDistance(cfg.Render.EyeDistance),
		pipeline.WithSkyBox(cfg.Render.SkyBox),
	)

	h := newHUD(filepath.Base(modelPath), sc, rend)
	rt := router.New(sc, rend,
		router.WithGUI(h),
		router.WithPicker(newPicker(sc, rend)),
	)
	bus.Add(rt)

	rend.OnSurfaceCreated()
	rend.OnSurfaceChanged(cols, rows*2)

	return &viewer{bus: bus, scene: sc, device: dev, renderer: rend, router: rt, hud: h}
}

// frame draws one frame. Once the pipeline has failed the framebuffer keeps
// its last picture and the viewer stays up until the user quits; the
// failure is reported a single time.
func (v *viewer) frame() {
	v.renderer.OnDrawFrame()
	if !v.renderer.Broken() || v.stopped {
		return
	}
	v.stopped = true
	err := v.renderer.Err()
	slog.Error("rendering stopped, press Esc to quit", "err", err)
	v.hud.Stop(err)
	v.bus.Fire(event.Notice{Text: err.Error()})
}

// onLoaded applies the -texture override once the model is in.
func (v *viewer) onLoaded(err error, texture []byte) {
	if err != nil {
		// the scene already reported it through OnLoadError
		return
	}
	if texture == nil {
		return
	}
	if err := v.scene.LoadTexture(nil, texture); err != nil {
		if !errors.Is(err, scene.ErrNoTarget) {
			slog.Error("texture not applied", "err", err)
			return
		}
		// several objects: every one gets it
		for _, obj := range v.scene.Objects() {
			if err := v.scene.LoadTexture(obj, texture); err != nil {
				slog.Error("texture not applied", "object", obj.Name, "err", err)
			}
		}
	}
}

// resize follows the terminal to cols x rows cells.
func (v *viewer) resize(cols, rows int) {
	v.device.Resize(cols, rows*2)
	v.renderer.OnSurfaceChanged(cols, rows*2)
}

func (v *viewer) restoreState(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open view state: %w", err)
	}
	defer f.Close()
	return v.router.LoadState(f)
}

// saveState writes the view back to path; an empty path saves nothing.
func (v *viewer) saveState(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create view state: %w", err)
	}
	if err := v.router.SaveState(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
