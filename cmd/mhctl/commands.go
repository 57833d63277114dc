package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/model-health/modelhealth-go/internal/auth"
	"github.com/model-health/modelhealth-go/internal/config"
	"github.com/model-health/modelhealth-go/pkg/domain"
	"github.com/model-health/modelhealth-go/pkg/modelhealth"
)

type env struct {
	cfg    config.Config
	out    io.Writer
	client *modelhealth.Client
}

// connect verifies the key once per invocation.
func (e *env) connect(ctx context.Context) (*modelhealth.Client, error) {
	if e.client != nil {
		return e.client, nil
	}
	client, err := modelhealth.Connect(ctx, e.cfg.APIKey,
		modelhealth.WithBaseURL(e.cfg.BaseURL),
		modelhealth.WithDownloadConcurrency(e.cfg.DownloadConcurrency),
		modelhealth.WithLogger(log.New(os.Stderr, "[mhctl] ", log.LstdFlags)),
		modelhealth.WithUserAgent("mhctl"),
	)
	if err != nil {
		return nil, err
	}
	e.client = client
	return client, nil
}

type action func(ctx context.Context, e *env) error

// Each command registers its flags and returns the action to run once they are parsed.
var commands = map[string]func(fs *flag.FlagSet) action{
	"sessions":   sessionsCmd,
	"subjects":   subjectsCmd,
	"activities": activitiesCmd,
	"tags":       tagsCmd,
	"status":     statusCmd,
	"download":   downloadCmd,
	"calibrate":  calibrateCmd,
	"neutral":    neutralCmd,
	"analyze":    analyzeCmd,
	"token":      tokenCmd,
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: -%s is required", errUsage, name)
	}
	return nil
}

func withClient(fn func(ctx context.Context, e *env, c *modelhealth.Client) error) action {
	return func(ctx context.Context, e *env) error {
		c, err := e.connect(ctx)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(ctx, e, c)
	}
}

func sessionsCmd(*flag.FlagSet) action {
	return withClient(func(ctx context.Context, e *env, c *modelhealth.Client) error {
		sessions, err := c.ListSessions(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tACTIVITIES")
		for _, s := range sessions {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", s.ID, s.Name, s.ActivityCount)
		}
		return tw.Flush()
	})
}

func subjectsCmd(*flag.FlagSet) action {
	return withClient(func(ctx context.Context, e *env, c *modelhealth.Client) error {
		subjects, err := c.ListSubjects(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tHEIGHT\tWEIGHT")
		for _, s := range subjects {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Name, optFloat(s.Height), optFloat(s.Weight))
		}
		return tw.Flush()
	})
}

func activitiesCmd(fs *flag.FlagSet) action {
	session := fs.String("session", "", "session id")
	return func(ctx context.Context, e *env) error {
		if err := required("session", *session); err != nil {
			return err
		}
		return withClient(func(ctx context.Context, e *env, c *modelhealth.Client) error {
			activities, err := c.ListActivities(ctx, *session)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tVIDEOS")
			for _, a := range activities {
				name := ""
				if a.Name != nil {
					name = *a.Name
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", a.ID, name, a.Status, len(a.Videos))
			}
			return tw.Flush()
		})(ctx, e)
	}
}

func tagsCmd(*flag.FlagSet) action {
	return withClient(func(ctx context.Context, e *env, c *modelhealth.Client) error {
		tags, err := c.ListActivityTags(ctx)
		if err != nil {
			return err
		}
		for _, tag := range tags {
			fmt.Fprintf(e.out, "%s\t%s\n", tag.Value, tag.Label)
		}
		return nil
	})
}

func statusCmd(fs *flag.FlagSet) action {
	activity := fs.String("activity", "", "activity id")
	return func(ctx context.Context, e *env) error {
		if err := required("activity", *activity); err != nil {
			return err
		}
		return withClient(func(ctx context.Context, e *env, c *modelhealth.Client) error {
			status, err := c.GetStatus(ctx, domain.Activity{ID: *activity})
			if err != nil {
				return err
			}
			if status.Phase == domain.TrialUploading {
				fmt.Fprintf(e.out, "%s (%d/%d)\n", status.Phase, status.Uploaded, status.Total)
				return nil
			}
			fmt.Fprintln(e.out, status.Phase)
			return nil
		})(ctx, e)
	}
}

func downloadCmd(fs *flag.FlagSet) action {
	activityID := fs.String("activity", "", "activity id")
	rawTypes := fs.String("types", "", "comma separated result type codes")
	outDir := fs.String("out", ".", "output directory")
	return func(ctx context.Context, e *env) error {
		if err := required("activity", *activityID); err != nil {
			return err
		}
		types, err := parseResultTypes(*rawTypes)
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return withClient(func(ctx context.Context, e *env, c *modelhealth.Client) error {
			activity, err := c.GetActivity(ctx, *activityID)
			if err != nil {
				return err
			}
			results, err := c.FetchResultData(ctx, activity, types)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(*outDir, 0o755); err != nil {
				return err
			}
			for _, result := range results {
				path := filepath.Join(*outDir, fmt.Sprintf("%s_%s.%s", activity.ID, result.Type, result.Type.Format()))
				if err := os.WriteFile(path, result.Data, 0o644); err != nil {
					return err
				}
				fmt.Fprintln(e.out, path)
			}
			if missing := countUnique(types) - len(results); missing > 0 {
				fmt.Fprintf(e.out, "%d requested type(s) unavailable\n", missing)
			}
			return nil
		})(ctx, e)
	}
}

// parseResultTypes accepts "1,2" style code lists. Unknown codes are rejected; an empty
// list selects every type.
func parseResultTypes(raw string) ([]domain.ResultDataType, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.AllResultDataTypes, nil
	}
	var types []domain.ResultDataType
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("type code %q is not a number", part)
		}
		t, err := domain.ResultDataTypeFromCode(code)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func countUnique(types []domain.ResultDataType) int {
	seen := make(map[domain.ResultDataType]struct{}, len(types))
	for _, t := range types {
		seen[t] = struct{}{}
	}
	return len(seen)
}

func calibrateCmd(fs *flag.FlagSet) action {
	session := fs.String("session", "", "session id")
	rows := fs.Int("rows", 0, "checkerboard inner corner rows")
	cols := fs.Int("cols", 0, "checkerboard inner corner columns")
	square := fs.Float64("square", 0, "checkerboard square size in millimetres")
	placement := fs.String("placement", string(domain.PlacementPerpendicular), "board placement")
	return func(ctx context.Context, e *env) error {
		if err := required("session", *session); err != nil {
			return err
		}
		params := domain.CameraCalibrationParams{
			Rows:         *rows,
			Columns:      *cols,
			SquareSizeMM: *square,
			Placement:    domain.BoardPlacement(*placement),
		}
		return withClient(func(ctx context.Context, e *env, c *modelhealth.Client) error {
			return c.CalibrateCamera(ctx, *session, params, progress(e.out))
		})(ctx, e)
	}
}

func neutralCmd(fs *flag.FlagSet) action {
	session := fs.String("session", "", "session id")
	subject := fs.Int("subject", 0, "subject id")
	return func(ctx context.Context, e *env) error {
		if err := required("session", *session); err != nil {
			return err
		}
		if *subject <= 0 {
			return fmt.Errorf("%w: -subject is required", errUsage)
		}
		return withClient(func(ctx context.Context, e *env, c *modelhealth.Client) error {
			return c.CalibrateNeutral(ctx, *session, domain.NeutralCalibrationParams{SubjectID: *subject}, progress(e.out))
		})(ctx, e)
	}
}

func progress(out io.Writer) func(domain.CalibrationStatus) {
	return func(s domain.CalibrationStatus) {
		fmt.Fprintln(out, s)
	}
}

func analyzeCmd(fs *flag.FlagSet) action {
	activityID := fs.String("activity", "", "activity id")
	kind := fs.String("type", "", "analysis type, e.g. gait or squats")
	wait := fs.Bool("wait", false, "poll until the analysis finishes")
	interval := fs.Duration("interval", modelhealth.DefaultPollInterval, "poll interval with -wait")
	return func(ctx context.Context, e *env) error {
		if err := required("activity", *activityID); err != nil {
			return err
		}
		return withClient(func(ctx context.Context, e *env, c *modelhealth.Client) error {
			activity, err := c.GetActivity(ctx, *activityID)
			if err != nil {
				return err
			}
			session, err := c.GetSession(ctx, activity.SessionID)
			if err != nil {
				return err
			}
			task, err := c.StartAnalysis(ctx, domain.AnalysisType(*kind), activity, session)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "task %s submitted\n", task.ID)
			if !*wait {
				return nil
			}
			state, err := c.WaitForAnalysis(ctx, task, *interval)
			if state != "" {
				fmt.Fprintln(e.out, state)
			}
			return err
		})(ctx, e)
	}
}

func tokenCmd(fs *flag.FlagSet) action {
	tenant := fs.String("tenant", "", "tenant id")
	subject := fs.String("subject", "mhctl", "token subject")
	scopes := fs.String("scopes", auth.ScopeJobsRead+","+auth.ScopeJobsWrite, "comma separated scopes")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	return func(_ context.Context, e *env) error {
		if err := required("tenant", *tenant); err != nil {
			return err
		}
		if *ttl <= 0 {
			return errors.New("ttl must be positive")
		}
		var granted []string
		for _, scope := range strings.Split(*scopes, ",") {
			if scope = strings.TrimSpace(scope); scope != "" {
				granted = append(granted, scope)
			}
		}
		token, err := auth.Issue(auth.Config{Secret: e.cfg.JWTSecret, Issuer: e.cfg.JWTIssuer}, *subject, *tenant, granted, *ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, token)
		return nil
	}
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
