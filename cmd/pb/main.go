package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"planboard/internal/app"
	"planboard/internal/board"
	"planboard/internal/config"
	"planboard/internal/db"
	"planboard/internal/domain"
	"planboard/internal/engine"
	"planboard/internal/report"
	"planboard/internal/resources"
	"planboard/internal/server"
	"planboard/internal/workflowlog"
)

var rootCmd = &cobra.Command{
	Use:   "pb",
	Short: "planboard CLI",
	Long: `planboard plans NGO projects: activities with milestones and expenses under a budget ceiling.
- Project: owns a planned budget; activities together may not commit more than it.
- Activity: typed work item with dates, assignee and planned budget; 35% is allocated at creation.
- Review: draft -> submitted -> validated or rejected, for activities, milestones and expenses.
- Workflow log: every review action is recorded; view it with 'pb log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PLANBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.String("project", "", "project id (overrides config default)")
	flags.String("actor", "local-user", "actor label recorded on review actions")
	flags.Bool("json", false, "output JSON")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("event-log", "", "workflow log backend (sqlite, redis, memory)")
	for _, name := range []string{"workspace", "project", "actor", "json", "log-level", "event-log"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(milestoneCmd())
	rootCmd.AddCommand(expenseCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(beneficiariesCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(assigneesCmd())
	rootCmd.AddCommand(resourceCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var id, name, currency string
	var budget int64
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write planboard.yml for a new workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg := config.Default(id)
			cfg.Project.Name = name
			cfg.Project.PlannedBudget = budget
			if currency != "" {
				cfg.Project.Currency = strings.ToUpper(currency)
			}
			if err := config.Write(workspace, cfg); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", config.Path(workspace))
			fmt.Printf("Database: %s\n", db.Path(workspace))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "default project id")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&currency, "currency", "", "currency code")
	cmd.Flags().Int64Var(&budget, "budget", 0, "planned budget")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectBudgetCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var in engine.ProjectInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				p, err := s.Engine.CreateProject(ctx, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&in.ID, "id", "", "project id")
	cmd.Flags().StringVar(&in.Name, "name", "", "project name")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().Int64Var(&in.PlannedBudget, "budget", 0, "planned budget")
	cmd.Flags().StringVar(&in.Currency, "currency", "", "currency code")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				items, err := s.Engine.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Name", "Currency", "Planned budget", "Created")
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Currency, p.PlannedBudget, p.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the project and its budget summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, s *app.Stack, p domain.Project) error {
				sum, err := s.Engine.BudgetSummary(ctx, p.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(struct {
					Project domain.Project       `json:"project"`
					Budget  engine.BudgetSummary `json:"budget"`
				}{p, sum})
			})
		},
	}
}

func projectBudgetCmd() *cobra.Command {
	var set int64
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show or change the planned budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, s *app.Stack, p domain.Project) error {
				if cmd.Flags().Changed("set") {
					if _, err := s.Engine.SetProjectBudget(ctx, p.ID, set); err != nil {
						return err
					}
				}
				sum, err := s.Engine.BudgetSummary(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				tw := newTable("Planned", "Committed", "Allocated", "Remaining", "Spent", "Approved spend", "Currency")
				tw.AppendRow(table.Row{sum.Planned, sum.Committed, sum.Allocated, sum.Remaining, sum.Spent, sum.ApprovedSpend, sum.Currency})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&set, "set", 0, "new planned budget")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Workflow log",
		Long:  "Every submit, validate, approve and reject action, newest first.",
	}
	log.AddCommand(logTailCmd())
	log.AddCommand(logClearCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var f workflowlog.Filter
	var evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent workflow events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if evtType != "" && !domain.EventType(evtType).Valid() {
				return fmt.Errorf("unknown event type %q", evtType)
			}
			f.Type = domain.EventType(evtType)
			return withProject(cmd.Context(), func(ctx context.Context, s *app.Stack, p domain.Project) error {
				f.ProjectID = p.ID
				events := s.Engine.Events(ctx, f)
				if n > 0 && len(events) > n {
					events = events[:n]
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable("Time", "Type", "By", "Activity", "Milestone", "Notes")
				for _, ev := range events {
					tw.AppendRow(table.Row{ev.Timestamp, ev.Type, ev.By, ev.ActivityID, ev.MilestoneID, ev.Notes})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.ActivityID, "activity", "", "activity id filter")
	cmd.Flags().StringVar(&f.MilestoneID, "milestone", "", "milestone id filter")
	return cmd
}

func logClearCmd() *cobra.Command {
	var activityID string
	var all bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop events of one activity, or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if activityID == "" && !all {
				return fmt.Errorf("--activity or --all required")
			}
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				if all {
					s.Engine.Log.ClearAll(ctx)
				} else {
					s.Engine.Log.ClearByActivity(ctx, activityID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&activityID, "activity", "", "activity id")
	cmd.Flags().BoolVar(&all, "all", false, "clear the whole log")
	return cmd
}

func boardCmd() *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show activities as a kanban board",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, s *app.Stack, p domain.Project) error {
				b, err := s.Engine.Board(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(b)
				}
				fmt.Println(board.Render(b, width))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&width, "width", board.DefaultColumnWidth, "column width")
	return cmd
}

func assigneesCmd() *cobra.Command {
	var assigneeType string
	cmd := &cobra.Command{
		Use:   "assignees",
		Short: "List organisations compatible with an assignee type",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := domain.AssigneeType(assigneeType)
			if t != "" && !t.Valid() {
				return fmt.Errorf("unknown assignee type %q", assigneeType)
			}
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				orgs := s.Engine.AssigneeCatalog(t)
				if viper.GetBool("json") {
					return printJSON(orgs)
				}
				tw := newTable("ID", "Name", "Roles")
				for _, org := range orgs {
					tw.AppendRow(table.Row{org.ID, org.Name, strings.Join(org.Roles, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&assigneeType, "type", "", "assignee type")
	return cmd
}

func resourceCmd() *cobra.Command {
	res := &cobra.Command{Use: "resource", Short: "Resource library"}
	res.AddCommand(resourceImportCmd())
	res.AddCommand(resourceListCmd())
	return res
}

func resourceImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yml>",
		Short: "Import resources from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			items, err := resources.Decode(f)
			if err != nil {
				return err
			}
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				if err := s.Engine.Repo.UpsertResources(ctx, items); err != nil {
					return err
				}
				fmt.Printf("Imported %d resources\n", len(items))
				return nil
			})
		},
	}
}

func resourceListCmd() *cobra.Command {
	var q resources.Query
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Search the resource library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				items, err := s.Engine.Repo.ListResources(ctx)
				if err != nil {
					return err
				}
				page := resources.List(items, q)
				if viper.GetBool("json") {
					return printJSON(page)
				}
				tw := newTable("ID", "Title", "Category", "Year", "Language", "Published")
				for _, r := range page.Items {
					tw.AppendRow(table.Row{r.ID, r.Title, r.Category, r.Year, r.Language, r.PublishedAt})
				}
				tw.AppendFooter(table.Row{"", fmt.Sprintf("page %d of %d", page.Page, page.TotalPages), "", "", "", fmt.Sprintf("%d total", page.Total)})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&q.Search, "q", "", "search in title, summary and tags")
	cmd.Flags().StringVar(&q.Category, "category", "", "category filter")
	cmd.Flags().IntVar(&q.Year, "year", 0, "year filter")
	cmd.Flags().StringVar(&q.Language, "language", "", "language filter")
	cmd.Flags().StringSliceVar(&q.Tags, "tag", nil, "tag filter, repeatable, all must match")
	cmd.Flags().StringVar(&q.Sort, "sort", resources.SortNewest, "newest or oldest")
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.PageSize, "page-size", resources.DefaultPageSize, "page size")
	return cmd
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the project budget to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, s *app.Stack, p domain.Project) error {
				wb, err := report.Collect(ctx, s.Engine, p.ID)
				if err != nil {
					return err
				}
				path := out
				if path == "" {
					path = p.ID + "-budget.xlsx"
				}
				if err := report.NewExporter(s.Logger).SaveAs(wb, path); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default <project>-budget.xlsx)")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowActorHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" && !allowActorHeader {
				return fmt.Errorf("PLANBOARD_JWT_SECRET is required unless --allow-actor-header is set")
			}
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				handler, err := server.New(server.Config{
					Engine:   s.Engine,
					BasePath: basePath,
					Auth:     server.AuthConfig{JWTSecret: secret, AllowActorHeader: allowActorHeader},
					Logger:   s.Logger,
				})
				if err != nil {
					return err
				}
				if err := server.StartWebhooks(ctx, s.Bus, s.Config.Webhooks, s.Logger); err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				s.Logger.Info("serving planboard API",
					zap.String("addr", addr),
					zap.String("base_path", basePath),
					zap.Int("webhooks", len(s.Config.Webhooks)))
				fmt.Printf("Serving planboard API on http://%s%s (OpenAPI at /openapi.json, docs at /docs)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowActorHeader, "allow-actor-header", false, "accept X-Actor-Id without a token (local use)")
	return cmd
}

func openOptions() app.Options {
	return app.Options{
		Workspace:       viper.GetString("workspace"),
		EventLogBackend: viper.GetString("event-log"),
		LogLevel:        viper.GetString("log-level"),
	}
}

func withStack(ctx context.Context, fn func(context.Context, *app.Stack) error) error {
	s, err := app.Open(ctx, openOptions())
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func withProject(ctx context.Context, fn func(context.Context, *app.Stack, domain.Project) error) error {
	return withStack(ctx, func(ctx context.Context, s *app.Stack) error {
		p, err := app.ResolveProject(ctx, s.Engine, viper.GetString("project"))
		if err != nil {
			return err
		}
		return fn(ctx, s, p)
	})
}

func reviewInput(notes string) engine.ReviewInput {
	return engine.ReviewInput{By: viper.GetString("actor"), Notes: notes}
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(header))
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
