package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"planboard/internal/app"
	"planboard/internal/domain"
	"planboard/internal/engine"
	"planboard/internal/repo"
)

func activityCmd() *cobra.Command {
	act := &cobra.Command{
		Use:   "activity",
		Short: "Manage activities",
		Long:  "Activities are typed work items. Creation is refused when fields are missing or the budget ceiling would be exceeded.",
	}
	act.AddCommand(activityCheckCmd())
	act.AddCommand(activityCreateCmd())
	act.AddCommand(activityListCmd())
	act.AddCommand(activityShowCmd())
	act.AddCommand(activityStatusCmd())
	act.AddCommand(activityProgressCmd())
	for _, action := range []engine.ReviewAction{engine.ActionSubmit, engine.ActionValidate, engine.ActionReject} {
		act.AddCommand(reviewCmd("activity", action, func(ctx context.Context, e engine.Engine, id string, in engine.ReviewInput) (any, error) {
			return e.ReviewActivity(ctx, id, action, in)
		}))
	}
	act.AddCommand(activityDeleteCmd())
	act.AddCommand(activityAttachCmd())
	act.AddCommand(activityDetachCmd())
	return act
}

type draftFlags struct {
	draft    engine.ActivityDraft
	budget   int64
	kpi      float64
	sessions int
}

func (f *draftFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.draft.Title, "title", "", "title")
	cmd.Flags().StringVar(&f.draft.Description, "description", "", "description")
	cmd.Flags().StringVar((*string)(&f.draft.Type), "type", "", "purchase, production, distribution, training, research-development or other")
	cmd.Flags().StringVar(&f.draft.StartDate, "start", "", "start date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.draft.EndDate, "end", "", "end date YYYY-MM-DD")
	cmd.Flags().Int64Var(&f.budget, "budget", 0, "planned budget")
	cmd.Flags().StringVar(&f.draft.Assignee, "assignee", "", "assignee, resolved against the organisation catalog")
	cmd.Flags().StringVar((*string)(&f.draft.AssigneeType), "assignee-type", "", "assignee type")
	cmd.Flags().StringVar(&f.draft.Category, "category", "", "category")
	cmd.Flags().StringVar(&f.draft.Due, "due", "", "due date YYYY-MM-DD")
	cmd.Flags().Float64Var(&f.kpi, "kpi-target", 0, "KPI target")
	cmd.Flags().StringVar(&f.draft.KPIUnit, "kpi-unit", "", "KPI unit")
	cmd.Flags().IntVar(&f.sessions, "sessions", 0, "planned sessions (training)")
}

// resolve turns flags the user actually set into optional draft fields.
func (f *draftFlags) resolve(cmd *cobra.Command, projectID string) engine.ActivityDraft {
	d := f.draft
	d.ProjectID = projectID
	if cmd.Flags().Changed("budget") {
		d.PlannedBudget = &f.budget
	}
	if cmd.Flags().Changed("kpi-target") {
		d.KPITarget = &f.kpi
	}
	if cmd.Flags().Changed("sessions") {
		d.SessionsPlanned = &f.sessions
	}
	return d
}

func printCheck(check engine.DraftCheck) error {
	if viper.GetBool("json") {
		return printJSON(check)
	}
	b := check.Budget
	tw := newTable("Blocked", "Missing", "Invalid", "Budget", "Committed", "Remaining", "Candidate", "Excess", "Allocated")
	tw.AppendRow(table.Row{check.Blocked, check.Missing, check.Invalid, b.ProjectBudget, b.Committed, b.Remaining, b.Candidate, b.Excess, check.Allocated})
	tw.Render()
	if check.Reason != "" {
		fmt.Println(check.Reason)
	}
	return nil
}

func activityCheckCmd() *cobra.Command {
	var f draftFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the creation checks without creating anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, s *app.Stack, p domain.Project) error {
				check, err := s.Engine.CheckDraft(ctx, f.resolve(cmd, p.ID))
				if err != nil {
					return err
				}
				return printCheck(check)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func activityCreateCmd() *cobra.Command {
	var f draftFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, s *app.Stack, p domain.Project) error {
				res, err := s.Engine.CreateActivity(ctx, f.resolve(cmd, p.ID))
				if err != nil {
					return err
				}
				if res.Activity == nil {
					if err := printCheck(res.Check); err != nil {
						return err
					}
					return fmt.Errorf("creation blocked: %s", res.Check.Reason)
				}
				return printJSONOrTable(res.Activity)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func activityListCmd() *cobra.Command {
	var f repo.ActivityFilters
	var status, review, activityType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = domain.ActivityStatus(status)
			f.ReviewStatus = domain.ReviewStatus(review)
			f.Type = domain.ActivityType(activityType)
			return withProject(cmd.Context(), func(ctx context.Context, s *app.Stack, p domain.Project) error {
				f.ProjectID = p.ID
				items, err := s.Engine.ListActivities(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Title", "Type", "Status", "Review", "Assignee", "Budget", "Allocated", "Progress")
				for _, a := range items {
					progress := fmt.Sprintf("%d%%", engine.EffectiveProgress(a))
					if a.Progress == nil {
						progress += "*"
					}
					tw.AppendRow(table.Row{a.ID, a.Title, a.Type, a.Status, a.ReviewStatus, a.Assignee, a.PlannedBudget, a.Allocated, progress})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&review, "review", "", "review status filter")
	cmd.Flags().StringVar(&activityType, "type", "", "type filter")
	cmd.Flags().StringVar(&f.Assignee, "assignee", "", "assignee filter")
	return cmd
}

func activityShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an activity with its milestones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				a, err := s.Engine.GetActivity(ctx, args[0])
				if err != nil {
					return err
				}
				ms, err := s.Engine.ListMilestones(ctx, a.ProjectID, a.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(struct {
					Activity   domain.Activity    `json:"activity"`
					Progress   int                `json:"progress"`
					Milestones []domain.Milestone `json:"milestones"`
				}{a, engine.EffectiveProgress(a), ms})
			})
		},
	}
}

func activityStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <todo|in_progress|blocked|done>",
		Short: "Move an activity to another board column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				a, err := s.Engine.ChangeStatus(ctx, args[0], domain.ActivityStatus(args[1]))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
}

func activityProgressCmd() *cobra.Command {
	var clearStored bool
	cmd := &cobra.Command{
		Use:   "progress <id> [percent]",
		Short: "Set stored progress, or clear it to fall back to the derived value",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearStored == (len(args) == 2) {
				return fmt.Errorf("give either a percent or --clear")
			}
			var percent int
			if !clearStored {
				var err error
				if percent, err = strconv.Atoi(args[1]); err != nil {
					return fmt.Errorf("percent must be an integer: %w", err)
				}
			}
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				var (
					a   domain.Activity
					err error
				)
				if clearStored {
					a, err = s.Engine.ClearProgress(ctx, args[0])
				} else {
					a, err = s.Engine.SetProgress(ctx, args[0], percent)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().BoolVar(&clearStored, "clear", false, "drop the stored value")
	return cmd
}

func activityDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an activity with its milestones and expenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				return s.Engine.DeleteActivity(ctx, args[0])
			})
		},
	}
}

func activityAttachCmd() *cobra.Command {
	var att domain.Attachment
	cmd := &cobra.Command{
		Use:   "attach <id>",
		Short: "Record attachment metadata on an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				added, err := s.Engine.AddAttachment(ctx, args[0], att)
				if err != nil {
					return err
				}
				return printJSONOrTable(added)
			})
		},
	}
	cmd.Flags().StringVar(&att.Name, "name", "", "file name")
	cmd.Flags().Int64Var(&att.Size, "size", 0, "size in bytes")
	cmd.Flags().StringVar(&att.Type, "type", "", "MIME type")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func activityDetachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detach <id> <attachment-id>",
		Short: "Remove attachment metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				return s.Engine.RemoveAttachment(ctx, args[0], args[1])
			})
		},
	}
}

type reviewFunc func(ctx context.Context, e engine.Engine, id string, in engine.ReviewInput) (any, error)

// reviewCmd builds "<subject> <action> <id>" for one review action.
func reviewCmd(subject string, action engine.ReviewAction, fn reviewFunc) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <id>", action),
		Short: fmt.Sprintf("%s a %s", action, subject),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				out, err := fn(ctx, s.Engine, args[0], reviewInput(notes))
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "notes recorded with the event")
	return cmd
}

func milestoneCmd() *cobra.Command {
	ms := &cobra.Command{Use: "milestone", Short: "Manage milestones"}
	ms.AddCommand(milestoneAddCmd())
	ms.AddCommand(milestoneListCmd())
	ms.AddCommand(milestoneStatusCmd())
	ms.AddCommand(milestoneProgressCmd())
	for _, action := range []engine.ReviewAction{engine.ActionSubmit, engine.ActionValidate, engine.ActionReject} {
		ms.AddCommand(reviewCmd("milestone", action, func(ctx context.Context, e engine.Engine, id string, in engine.ReviewInput) (any, error) {
			return e.ReviewMilestone(ctx, id, action, in)
		}))
	}
	return ms
}

func milestoneAddCmd() *cobra.Command {
	var in engine.MilestoneInput
	var status string
	cmd := &cobra.Command{
		Use:   "add <activity-id>",
		Short: "Add a milestone to an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.ActivityID = args[0]
			in.Status = domain.MilestoneStatus(status)
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				m, err := s.Engine.AddMilestone(ctx, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&in.Label, "label", "", "label")
	cmd.Flags().StringVar(&in.TargetDate, "target", "", "target date YYYY-MM-DD")
	cmd.Flags().IntVar(&in.Progress, "progress", 0, "progress percent")
	cmd.Flags().StringVar(&status, "status", "", "not_started, on_track, at_risk or completed")
	_ = cmd.MarkFlagRequired("label")
	return cmd
}

func milestoneListCmd() *cobra.Command {
	var activityID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List milestones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, s *app.Stack, p domain.Project) error {
				items, err := s.Engine.ListMilestones(ctx, p.ID, activityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Activity", "Label", "Target", "Status", "Progress", "Review")
				for _, m := range items {
					target := ""
					if m.TargetDate != nil {
						target = *m.TargetDate
					}
					tw.AppendRow(table.Row{m.ID, m.ActivityID, m.Label, target, m.Status, fmt.Sprintf("%d%%", m.Progress), m.ReviewStatus})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&activityID, "activity", "", "activity id filter")
	return cmd
}

func milestoneStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <not_started|on_track|at_risk|completed>",
		Short: "Set milestone status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				m, err := s.Engine.SetMilestoneStatus(ctx, args[0], domain.MilestoneStatus(args[1]))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
}

func milestoneProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <percent>",
		Short: "Set milestone progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			percent, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("percent must be an integer: %w", err)
			}
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				m, err := s.Engine.SetMilestoneProgress(ctx, args[0], percent)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
}

func expenseCmd() *cobra.Command {
	ex := &cobra.Command{Use: "expense", Short: "Manage expenses"}
	ex.AddCommand(expenseAddCmd())
	ex.AddCommand(expenseListCmd())
	for _, action := range []engine.ReviewAction{engine.ActionSubmit, engine.ActionApprove, engine.ActionReject} {
		ex.AddCommand(reviewCmd("expense", action, func(ctx context.Context, e engine.Engine, id string, in engine.ReviewInput) (any, error) {
			return e.ReviewExpense(ctx, id, action, in)
		}))
	}
	return ex
}

func expenseAddCmd() *cobra.Command {
	var in engine.ExpenseInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense against an activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd.Context(), func(ctx context.Context, s *app.Stack) error {
				x, err := s.Engine.AddExpense(ctx, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(x)
			})
		},
	}
	cmd.Flags().StringVar(&in.ActivityID, "activity", "", "activity id")
	cmd.Flags().StringVar(&in.Label, "label", "", "label")
	cmd.Flags().Int64Var(&in.Amount, "amount", 0, "amount")
	cmd.Flags().StringVar(&in.SpentOn, "spent-on", "", "date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("activity")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func expenseListCmd() *cobra.Command {
	var f repo.ExpenseFilters
	var review string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.ReviewStatus = domain.ReviewStatus(review)
			return withProject(cmd.Context(), func(ctx context.Context, s *app.Stack, p domain.Project) error {
				f.ProjectID = p.ID
				items, err := s.Engine.ListExpenses(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Activity", "Label", "Spent on", "Amount", "Review")
				var total int64
				for _, x := range items {
					total += x.Amount
					tw.AppendRow(table.Row{x.ID, x.ActivityID, x.Label, x.SpentOn, x.Amount, x.ReviewStatus})
				}
				tw.AppendFooter(table.Row{"", "", "", "Total", total, ""})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ActivityID, "activity", "", "activity id filter")
	cmd.Flags().StringVar(&review, "review", "", "review status filter")
	return cmd
}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Progress reports"}
	var sub domain.ReportSubmission
	var notes string
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Submit a progress report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, s *app.Stack, p domain.Project) error {
				ev, err := s.Engine.SubmitReport(ctx, p.ID, sub, reviewInput(notes))
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	submit.Flags().StringVar(&sub.Title, "title", "", "report title")
	submit.Flags().StringVar(&sub.Period, "period", "", "reporting period, e.g. 2025-Q1")
	submit.Flags().StringVar(&sub.Summary, "summary", "", "summary")
	submit.Flags().StringVar(&notes, "notes", "", "notes recorded with the event")
	rep.AddCommand(submit)
	return rep
}

func beneficiariesCmd() *cobra.Command {
	ben := &cobra.Command{Use: "beneficiaries", Short: "Beneficiaries reached"}
	var (
		activityID string
		total      int
		groups     map[string]int
		notes      string
	)
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Submit beneficiaries reached",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, s *app.Stack, p domain.Project) error {
				ev, err := s.Engine.SubmitBeneficiaries(ctx, p.ID, activityID,
					domain.BeneficiariesReport{Total: total, Breakdown: groups}, reviewInput(notes))
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	submit.Flags().StringVar(&activityID, "activity", "", "activity id")
	submit.Flags().IntVar(&total, "total", 0, "total beneficiaries")
	submit.Flags().StringToIntVar(&groups, "group", nil, "breakdown, e.g. --group women=40,youth=12")
	submit.Flags().StringVar(&notes, "notes", "", "notes recorded with the event")
	_ = submit.MarkFlagRequired("total")
	ben.AddCommand(submit)
	return ben
}
