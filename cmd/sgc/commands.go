package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/sgc/internal/app"
	"github.com/hylla/sgc/internal/domain"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func parseDate(flag, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", flag, err)
	}
	return t, nil
}

func (c *cli) processCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Create, start, finish and inspect processes",
	}

	var (
		description string
		kind        string
		deadline    string
		units       []string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a process in the CREATED state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			due, err := parseDate("deadline", deadline)
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				process, err := rt.svc.CreateProcess(ctx, app.CreateProcessInput{
					Description: description,
					Kind:        domain.ProcessKind(kind),
					Deadline:    due,
					UnitIDs:     units,
				})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), process.ID)
				return nil
			})
		},
	}
	create.Flags().StringVarP(&description, "description", "d", "", "process description")
	create.Flags().StringVarP(&kind, "kind", "k", string(domain.ProcessKindMapping), "MAPPING, REVISION or DIAGNOSIS")
	create.Flags().StringVar(&deadline, "deadline", "", "stage-1 deadline (YYYY-MM-DD)")
	create.Flags().StringSliceVarP(&units, "unit", "u", nil, "participating unit id (repeatable)")
	_ = create.MarkFlagRequired("description")
	_ = create.MarkFlagRequired("deadline")

	var (
		updDescription string
		updDeadline    string
		updUnits       []string
	)
	update := &cobra.Command{
		Use:   "update PROCESS",
		Short: "Edit a process that has not started",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := parseDate("deadline", updDeadline)
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				current, err := rt.svc.GetProcess(ctx, args[0])
				if err != nil {
					return err
				}
				in := app.UpdateProcessInput{
					ProcessID:   current.ID,
					Description: current.Description,
					Deadline:    current.Deadline,
					UnitIDs:     current.UnitIDs,
				}
				if cmd.Flags().Changed("description") {
					in.Description = updDescription
				}
				if cmd.Flags().Changed("deadline") {
					in.Deadline = due
				}
				if cmd.Flags().Changed("unit") {
					in.UnitIDs = updUnits
				}
				process, err := rt.svc.UpdateProcess(ctx, in)
				if err != nil {
					return err
				}
				renderProcess(cmd.OutOrStdout(), process, nil, nil)
				return nil
			})
		},
	}
	update.Flags().StringVarP(&updDescription, "description", "d", "", "new description")
	update.Flags().StringVar(&updDeadline, "deadline", "", "new stage-1 deadline (YYYY-MM-DD)")
	update.Flags().StringSliceVarP(&updUnits, "unit", "u", nil, "replacement participating unit ids")

	remove := &cobra.Command{
		Use:   "delete PROCESS",
		Short: "Delete a process that has not started",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				return rt.svc.DeleteProcess(ctx, args[0])
			})
		},
	}

	var startUnits []string
	start := &cobra.Command{
		Use:   "start PROCESS",
		Short: "Start a process and open one subprocess per participating unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				process, err := rt.svc.StartProcess(ctx, args[0], startUnits)
				if err != nil {
					return err
				}
				return c.showProcess(ctx, cmd, rt, process)
			})
		},
	}
	start.Flags().StringSliceVarP(&startUnits, "unit", "u", nil, "unit ids for revision and diagnosis processes")

	finish := &cobra.Command{
		Use:   "finish PROCESS",
		Short: "Finish a process whose maps are all homologated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				process, err := rt.svc.FinishProcess(ctx, args[0])
				if err != nil {
					return err
				}
				return c.showProcess(ctx, cmd, rt, process)
			})
		},
	}

	show := &cobra.Command{
		Use:   "show PROCESS",
		Short: "Show a process and its subprocesses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				process, err := rt.svc.GetProcess(ctx, args[0])
				if err != nil {
					return err
				}
				return c.showProcess(ctx, cmd, rt, process)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				processes, err := rt.svc.ListProcesses(ctx)
				if err != nil {
					return err
				}
				renderProcesses(cmd.OutOrStdout(), processes)
				return nil
			})
		},
	}

	cmd.AddCommand(create, update, remove, start, finish, show, list)
	return cmd
}

func (c *cli) showProcess(ctx context.Context, cmd *cobra.Command, rt *runtime, process domain.Process) error {
	subs, err := rt.svc.ListSubprocesses(ctx, process.ID)
	if err != nil {
		return err
	}
	tree, err := rt.repo.UnitSnapshot(ctx)
	if err != nil {
		return err
	}
	renderProcess(cmd.OutOrStdout(), process, subs, tree)
	return nil
}

func (c *cli) subprocessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "subprocess SUBPROCESS",
		Short: "Show one subprocess",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				sub, err := rt.svc.GetSubprocess(ctx, args[0])
				if err != nil {
					return err
				}
				tree, err := rt.repo.UnitSnapshot(ctx)
				if err != nil {
					return err
				}
				renderSubprocess(cmd.OutOrStdout(), sub, tree)
				return nil
			})
		},
	}
}

func (c *cli) activityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Edit cadastro activities",
	}

	var description string
	add := &cobra.Command{
		Use:   "add SUBPROCESS",
		Short: "Add an activity to the cadastro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := c.currentActor()
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				activity, err := rt.svc.AddActivity(ctx, args[0], actor, description)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), activity.ID)
				return nil
			})
		},
	}
	add.Flags().StringVarP(&description, "description", "d", "", "activity description")
	_ = add.MarkFlagRequired("description")

	var newDescription string
	update := &cobra.Command{
		Use:   "update ACTIVITY",
		Short: "Rename an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := c.currentActor()
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				_, err := rt.svc.UpdateActivity(ctx, args[0], actor, newDescription)
				return err
			})
		},
	}
	update.Flags().StringVarP(&newDescription, "description", "d", "", "new description")
	_ = update.MarkFlagRequired("description")

	remove := &cobra.Command{
		Use:   "remove ACTIVITY",
		Short: "Remove an activity and its knowledge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := c.currentActor()
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				return rt.svc.RemoveActivity(ctx, args[0], actor)
			})
		},
	}

	cmd.AddCommand(add, update, remove)
	return cmd
}

func (c *cli) knowledgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Edit the knowledge required by activities",
	}

	var description string
	add := &cobra.Command{
		Use:   "add ACTIVITY",
		Short: "Add a knowledge item to an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := c.currentActor()
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				knowledge, err := rt.svc.AddKnowledge(ctx, args[0], actor, description)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), knowledge.ID)
				return nil
			})
		},
	}
	add.Flags().StringVarP(&description, "description", "d", "", "knowledge description")
	_ = add.MarkFlagRequired("description")

	remove := &cobra.Command{
		Use:   "remove KNOWLEDGE",
		Short: "Remove a knowledge item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := c.currentActor()
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				return rt.svc.RemoveKnowledge(ctx, args[0], actor)
			})
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}

// transitionCommand builds a SUBPROCESS command that runs one workflow transition.
func (c *cli) transitionCommand(use, short string, fn func(*app.Service, context.Context, string, domain.Actor) (domain.Subprocess, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " SUBPROCESS",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := c.currentActor()
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				sub, err := fn(rt.svc, ctx, args[0], actor)
				if err != nil {
					return err
				}
				tree, err := rt.repo.UnitSnapshot(ctx)
				if err != nil {
					return err
				}
				renderSubprocess(cmd.OutOrStdout(), sub, tree)
				return nil
			})
		},
	}
}

// reviewCommand is a transitionCommand that also takes --reason and --observations.
func (c *cli) reviewCommand(use, short string, fn func(*app.Service, context.Context, string, domain.Actor, app.ReviewInput) (domain.Subprocess, error)) *cobra.Command {
	var in app.ReviewInput
	cmd := c.transitionCommand(use, short, func(svc *app.Service, ctx context.Context, id string, actor domain.Actor) (domain.Subprocess, error) {
		return fn(svc, ctx, id, actor, in)
	})
	cmd.Flags().StringVar(&in.Reason, "reason", "", "justification recorded with the analysis")
	cmd.Flags().StringVar(&in.Observations, "observations", "", "observations recorded with the analysis")
	return cmd
}

func (c *cli) cadastroCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cadastro",
		Short: "Stage 1: submit and review activity cadastros",
	}
	cmd.AddCommand(
		c.transitionCommand("submit", "Submit the cadastro to the superior unit", (*app.Service).SubmitCadastro),
		c.reviewCommand("return", "Return the cadastro to the unit below", (*app.Service).ReturnCadastro),
		c.reviewCommand("accept", "Accept the cadastro and forward it upwards", (*app.Service).AcceptCadastro),
		c.reviewCommand("homologate", "Homologate the cadastro at the top-level unit", (*app.Service).HomologateCadastro),
	)
	return cmd
}

func (c *cli) mapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Stage 2: build, validate and homologate competency maps",
	}

	show := &cobra.Command{
		Use:   "show SUBPROCESS",
		Short: "Show the cadastro and competencies of a subprocess map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				sub, err := rt.svc.GetSubprocess(ctx, args[0])
				if err != nil {
					return err
				}
				contents, err := rt.svc.GetMapContents(ctx, sub.MapID)
				if err != nil {
					return err
				}
				renderMapContents(cmd.OutOrStdout(), contents)
				return nil
			})
		},
	}

	var effectiveUnit string
	effective := &cobra.Command{
		Use:   "effective",
		Short: "Show the effective map of a unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				contents, err := rt.svc.GetEffectiveMapContents(ctx, effectiveUnit)
				if err != nil {
					return err
				}
				renderMapContents(cmd.OutOrStdout(), contents)
				return nil
			})
		},
	}
	effective.Flags().StringVarP(&effectiveUnit, "unit", "u", "", "unit id")
	_ = effective.MarkFlagRequired("unit")

	var file string
	save := &cobra.Command{
		Use:   "save SUBPROCESS",
		Short: "Replace the competencies of a map from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := c.currentActor()
			if err != nil {
				return err
			}
			var doc competencyFile
			if err := readYAML(file, &doc); err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				sub, err := rt.svc.GetSubprocess(ctx, args[0])
				if err != nil {
					return err
				}
				contents, err := rt.svc.GetMapContents(ctx, sub.MapID)
				if err != nil {
					return err
				}
				inputs, err := competencyInputs(doc, contents.Activities)
				if err != nil {
					return err
				}
				saved, err := rt.svc.SaveMap(ctx, sub.ID, actor, inputs)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "saved %d competencies\n", len(saved))
				return nil
			})
		},
	}
	save.Flags().StringVarP(&file, "file", "f", "", "competencies YAML file")
	_ = save.MarkFlagRequired("file")

	var deadline string
	submit := c.transitionCommand("submit", "Send the map to the unit for validation", func(svc *app.Service, ctx context.Context, id string, actor domain.Actor) (domain.Subprocess, error) {
		due, err := parseDate("deadline", deadline)
		if err != nil {
			return domain.Subprocess{}, err
		}
		return svc.SubmitMap(ctx, id, actor, app.SubmitMapInput{Deadline: due})
	})
	submit.Flags().StringVar(&deadline, "deadline", "", "stage-2 deadline (YYYY-MM-DD); defaults to the configured window")

	var suggestions string
	suggest := c.transitionCommand("suggest", "Return the map to the admin with suggestions", func(svc *app.Service, ctx context.Context, id string, actor domain.Actor) (domain.Subprocess, error) {
		return svc.SuggestMap(ctx, id, actor, suggestions)
	})
	suggest.Flags().StringVarP(&suggestions, "suggestions", "s", "", "suggested changes")
	_ = suggest.MarkFlagRequired("suggestions")

	cmd.AddCommand(
		show,
		effective,
		save,
		submit,
		c.transitionCommand("validate", "Validate the map as the unit", (*app.Service).ValidateMap),
		suggest,
		c.reviewCommand("return", "Return the map to the unit below", (*app.Service).ReturnMap),
		c.reviewCommand("accept", "Accept the map and forward it upwards", (*app.Service).AcceptMap),
		c.reviewCommand("homologate", "Homologate the map at the top-level unit", (*app.Service).HomologateMap),
	)
	return cmd
}

func (c *cli) diagnosisCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnosis",
		Short: "Run diagnosis subprocesses",
	}
	cmd.AddCommand(
		c.transitionCommand("begin", "Begin the diagnosis of a unit", (*app.Service).BeginDiagnosis),
		c.transitionCommand("conclude", "Conclude the diagnosis of a unit", (*app.Service).ConcludeDiagnosis),
	)
	return cmd
}

func (c *cli) impactsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "impacts SUBPROCESS",
		Short: "Compare a revision cadastro against the unit's effective map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				report, err := rt.svc.VerifyImpacts(ctx, args[0])
				if err != nil {
					return err
				}
				renderImpacts(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

func (c *cli) historyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history SUBPROCESS",
		Short: "List the movements and analyses of a subprocess",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				movements, err := rt.svc.ListMovements(ctx, args[0])
				if err != nil {
					return err
				}
				analyses, err := rt.svc.ListAnalyses(ctx, args[0])
				if err != nil {
					return err
				}
				tree, err := rt.repo.UnitSnapshot(ctx)
				if err != nil {
					return err
				}
				renderHistory(cmd.OutOrStdout(), movements, analyses, tree)
				return nil
			})
		},
	}
}

func (c *cli) outboxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect queued notification e-mails",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List unsent notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				messages, err := rt.repo.PendingNotifications(ctx, limit)
				if err != nil {
					return err
				}
				renderOutbox(cmd.OutOrStdout(), messages)
				return nil
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 50, "maximum messages to list (0 for all)")

	ack := &cobra.Command{
		Use:   "ack ID...",
		Short: "Mark notifications as delivered",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, raw := range args {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid outbox id %q: %w", raw, err)
				}
				ids = append(ids, id)
			}
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				now := time.Now()
				for _, id := range ids {
					if err := rt.repo.MarkNotificationSent(ctx, id, now); err != nil {
						return fmt.Errorf("ack %d: %w", id, err)
					}
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, ack)
	return cmd
}
