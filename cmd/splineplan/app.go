package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/trajopt/splineplan/logging"
	"github.com/trajopt/splineplan/motionplan"
	"github.com/trajopt/splineplan/sdf"
	"github.com/trajopt/splineplan/utils"
	"github.com/trajopt/splineplan/viz"
)

const (
	requestFlag  = "request"
	plotDirFlag  = "plot-dir"
	debugFlag    = "debug"
	logLevelFlag = "log-level"
	executeFlag  = "execute"
)

// PlanRequest is everything needed to plan one path.
type PlanRequest struct {
	Session motionplan.SessionConfig `json:"session"`
	Scene   sdf.SceneConfig          `json:"scene"`
	Start   []float64                `json:"start"`
	Target  []float64                `json:"target"`
	// Start and target joint angles are given in degrees.
	Degrees bool `json:"degrees,omitempty"`
}

// ReadPlanRequest reads a request from a JSON file.
func ReadPlanRequest(filename string) (*PlanRequest, error) {
	//nolint:gosec
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read plan request")
	}
	req := &PlanRequest{}
	if err := json.Unmarshal(content, req); err != nil {
		return nil, errors.Wrapf(err, "failed to parse plan request %q", filename)
	}
	if req.Degrees {
		req.Start = utils.DegreesToRadians(req.Start)
		req.Target = utils.DegreesToRadians(req.Target)
	}
	return req, nil
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "splineplan",
		Usage:     "plan collision free spline paths for drones and arms",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			{
				Name:      "plan",
				Usage:     "optimize the path described by a plan request",
				UsageText: "splineplan plan --request <file.json> [--plot-dir <dir>] [--debug] [--log-level <level>] [--execute]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     requestFlag,
						Aliases:  []string{"r"},
						Usage:    "JSON plan request",
						Required: true,
					},
					&cli.StringFlag{
						Name:  plotDirFlag,
						Usage: "write a plot of every iteration into this directory",
					},
					&cli.BoolFlag{
						Name:  debugFlag,
						Usage: "log every iteration",
					},
					&cli.StringFlag{
						Name:  logLevelFlag,
						Usage: "minimum log level (debug, info, warn, error)",
						Value: "info",
					},
					&cli.BoolFlag{
						Name:  executeFlag,
						Usage: "hand the planned path to the logging executor",
					},
				},
				Action: planAction,
			},
			{
				Name:   "schema",
				Usage:  "print the JSON schema of a plan request",
				Action: schemaAction,
			},
		},
	}
}

func planAction(c *cli.Context) error {
	logger := logging.NewLogger("splineplan")
	level, err := logging.LevelFromString(c.String(logLevelFlag))
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if c.Bool(debugFlag) {
		logger.SetLevel(logging.DEBUG)
	}

	logger.Infof("reading plan from %s", c.String(requestFlag))
	req, err := ReadPlanRequest(c.String(requestFlag))
	if err != nil {
		return err
	}
	scene, err := req.Scene.ParseConfig()
	if err != nil {
		return errors.Wrap(err, "invalid scene")
	}
	if req.Session.Options == nil {
		req.Session.Options = motionplan.NewBasicOptimizerOptions()
	}
	req.Session.Options.RecordHistory = true

	opts := []motionplan.SessionOption{motionplan.WithExecutor(&logExecutor{logger: logger.Sublogger("executor")})}
	if dir := c.String(plotDirFlag); dir != "" {
		sink, err := viz.NewPlotSink(dir, logger.Sublogger("viz"))
		if err != nil {
			return err
		}
		opts = append(opts, motionplan.WithVisualizer(sink))
	}
	session, err := motionplan.NewSessionFromConfig(&req.Session, scene, logger, opts...)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var res *motionplan.Result
	if c.Bool(executeFlag) {
		res, err = session.PlanAndExecute(ctx, req.Start, req.Target)
	} else {
		res, err = session.Plan(ctx, req.Start, req.Target)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, iterationTable(res.History))
	fmt.Fprintf(c.App.Writer, "%s after %d iterations, min sdf %.4f\n", res.State, res.Iterations, res.MinSDF)
	summary, err := sdfSummary(res.SDF)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, summary)
	if req.Degrees && len(res.Path) > 0 {
		final := res.Path[len(res.Path)-1]
		degrees := make([]string, len(final))
		for i, q := range final {
			degrees[i] = fmt.Sprintf("%.1f", utils.RadToDeg(q))
		}
		fmt.Fprintf(c.App.Writer, "final configuration (degrees): %s\n", strings.Join(degrees, " "))
	}
	return nil
}

func schemaAction(c *cli.Context) error {
	out, err := json.MarshalIndent(jsonschema.Reflect(&PlanRequest{}), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}

// sdfSummary describes the clearance along the final path.
func sdfSummary(sdfValues [][]float64) (string, error) {
	var all stats.Float64Data
	for _, sample := range sdfValues {
		all = append(all, sample...)
	}
	mean, err := stats.Mean(all)
	if err != nil {
		return "", err
	}
	sd, err := stats.StandardDeviation(all)
	if err != nil {
		return "", err
	}
	p10, err := stats.PercentileNearestRank(all, 10)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("sdf mean %.4f, std %.4f, p10 %.4f over %d points", mean, sd, p10, len(all)), nil
}

func iterationTable(history []*motionplan.Iteration) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Total", "Length", "Collision", "Min SDF", "Gradient"})
	for _, it := range history {
		t.AppendRow(table.Row{
			it.Index,
			fmt.Sprintf("%.4f", it.TotalCost),
			fmt.Sprintf("%.4f", it.LengthCost),
			fmt.Sprintf("%.4f", it.CollisionCost),
			fmt.Sprintf("%.4f", it.MinSDF),
			fmt.Sprintf("%.4f", it.GradientNorm),
		})
	}
	return t.Render()
}

// logExecutor stands in for a robot: it logs the path it was asked to follow.
type logExecutor struct {
	logger logging.Logger
}

func (e *logExecutor) Execute(ctx context.Context, path [][]float64) error {
	if len(path) == 0 {
		return errors.New("empty path")
	}
	e.logger.Infow("executing path", "waypoints", len(path), "from", path[0], "to", path[len(path)-1])
	for i, waypoint := range path {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.logger.Debugw("waypoint", "index", i, "configuration", waypoint)
	}
	return nil
}
