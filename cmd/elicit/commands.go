package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/elicit/internal/api"
	"github.com/kalambet/elicit/internal/config"
	"github.com/kalambet/elicit/internal/docs"
	"github.com/kalambet/elicit/internal/pipeline"
	"github.com/kalambet/elicit/internal/storage"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid project id %q", arg)
	}
	return id, nil
}

func projectPath(id int64, suffix string) string {
	return fmt.Sprintf("/projects/%d%s", id, suffix)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withProject runs fn with a client and the project id given as the single argument.
func withProject(fn func(ctx context.Context, c *apiClient, id int64) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return fn(cmd.Context(), client, id)
	}
}

// --- project ---

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project from a requirements text or document",
	Long: `Create a project from a requirements text or document.

Examples:
  elicit project create --name crm --requirements "A CRM for a small sales team"
  elicit project create --name shop --file ./brief.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		requirements, _ := cmd.Flags().GetString("requirements")
		file, _ := cmd.Flags().GetString("file")

		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("--name is required")
		}
		if requirements == "" && file == "" {
			return fmt.Errorf("one of --requirements or --file is required")
		}
		if file != "" {
			text, err := docs.ReadFile(file)
			if err != nil {
				return err
			}
			requirements = strings.TrimSpace(requirements + "\n\n" + text)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		p, err := createProject(cmd.Context(), client, name, requirements)
		if err != nil {
			return err
		}
		printSuccess("Created project %d (%s)", p.ID, p.Name)
		return nil
	},
}

func createProject(ctx context.Context, c *apiClient, name, requirements string) (storage.Project, error) {
	resp, err := c.post(ctx, "/projects", api.CreateProjectRequest{Name: name, Requirements: requirements})
	if err != nil {
		return storage.Project{}, err
	}
	var p storage.Project
	if err := decodeJSON(resp, &p); err != nil {
		return storage.Project{}, err
	}
	return p, nil
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return listProjects(cmd.Context(), client, os.Stdout)
	},
}

func listProjects(ctx context.Context, c *apiClient, w io.Writer) error {
	resp, err := c.get(ctx, "/projects")
	if err != nil {
		return err
	}
	var projects []storage.Project
	if err := decodeJSON(resp, &projects); err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Fprintln(w, "No projects found.")
		return nil
	}
	for _, p := range projects {
		fmt.Fprintf(w, "%s  %s  %s\n",
			colorize(colorBold, fmt.Sprintf("%4d", p.ID)),
			statusLabel(string(p.Status), 10),
			p.Name,
		)
	}
	return nil
}

var projectShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a project as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: withProject(func(ctx context.Context, c *apiClient, id int64) error {
		resp, err := c.get(ctx, projectPath(id, ""))
		if err != nil {
			return err
		}
		var p storage.Project
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		return printJSON(os.Stdout, p)
	}),
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project with its framework and transcript",
	Args:  cobra.ExactArgs(1),
	RunE: withProject(func(ctx context.Context, c *apiClient, id int64) error {
		resp, err := c.delete(ctx, projectPath(id, ""))
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted project %d", id)
		return nil
	}),
}

func init() {
	projectCreateCmd.Flags().String("name", "", "project name")
	projectCreateCmd.Flags().String("requirements", "", "requirements text")
	projectCreateCmd.Flags().String("file", "", "requirements document (text or PDF)")
	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectShowCmd, projectDeleteCmd)
}

// --- framework / topics / priority ---

var frameworkCmd = &cobra.Command{
	Use:   "framework",
	Short: "Manage the interview framework of a project",
}

var frameworkGenerateCmd = &cobra.Command{
	Use:   "generate <id>",
	Short: "Generate sections, topics and slots from the requirements",
	Args:  cobra.ExactArgs(1),
	RunE: withProject(func(ctx context.Context, c *apiClient, id int64) error {
		printStep("Asking the oracle for an interview plan...")
		resp, err := c.post(ctx, projectPath(id, "/framework"), nil)
		if err != nil {
			return err
		}
		var sections []api.SectionView
		if err := decodeJSON(resp, &sections); err != nil {
			return err
		}
		printTopics(os.Stdout, sections)
		return nil
	}),
}

func init() {
	frameworkCmd.AddCommand(frameworkGenerateCmd)
}

var topicsCmd = &cobra.Command{
	Use:   "topics <id>",
	Short: "Show sections, topics and slots of a project",
	Args:  cobra.ExactArgs(1),
	RunE: withProject(func(ctx context.Context, c *apiClient, id int64) error {
		return showTopics(ctx, c, id, os.Stdout)
	}),
}

func showTopics(ctx context.Context, c *apiClient, id int64, w io.Writer) error {
	resp, err := c.get(ctx, projectPath(id, "/topics"))
	if err != nil {
		return err
	}
	var sections []api.SectionView
	if err := decodeJSON(resp, &sections); err != nil {
		return err
	}
	printTopics(w, sections)
	return nil
}

func printTopics(w io.Writer, sections []api.SectionView) {
	for _, sec := range sections {
		fmt.Fprintf(w, "%s %s\n", colorize(colorBold, sec.Number), sec.Content)
		for _, t := range sec.Topics {
			fmt.Fprintf(w, "  %s [%s] %s\n", colorize(colorBold, t.Number), statusLabel(string(t.Status), 0), t.Content)
			for _, sl := range t.Slots {
				value := "-"
				if sl.Value != nil {
					value = *sl.Value
				}
				fmt.Fprintf(w, "      %s = %s\n", sl.Key, value)
			}
		}
	}
}

var priorityCmd = &cobra.Command{
	Use:   "priority <id>",
	Short: "Show the ranked topic order of a project",
	Args:  cobra.ExactArgs(1),
	RunE: withProject(func(ctx context.Context, c *apiClient, id int64) error {
		return showPriority(ctx, c, id, os.Stdout)
	}),
}

func showPriority(ctx context.Context, c *apiClient, id int64, w io.Writer) error {
	resp, err := c.get(ctx, projectPath(id, "/priority"))
	if err != nil {
		return err
	}
	var ranking []storage.PriorityEntry
	if err := decodeJSON(resp, &ranking); err != nil {
		return err
	}
	for i, e := range ranking {
		fmt.Fprintf(w, "%3d. %-14s %.3f  %s\n", i+1, e.TopicNumber, e.Core, statusLabel(string(e.Status), 0))
	}
	return nil
}

// --- interview ---

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Run the interview of a project",
}

var interviewStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Start the interview, then answer questions until it completes",
	Long: `Start the interview and answer questions interactively.

Each line typed is sent as one reply. An empty line or EOF stops the
session; run the command again to resume where you left off.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		res, err := startInterview(cmd.Context(), client, id)
		if err != nil {
			return err
		}
		printTurn(os.Stdout, res)
		if once {
			return nil
		}
		return converse(cmd.Context(), client, id, os.Stdin, os.Stdout)
	},
}

func startInterview(ctx context.Context, c *apiClient, id int64) (pipeline.TurnResult, error) {
	resp, err := c.post(ctx, projectPath(id, "/interview/start"), nil)
	if err != nil {
		return pipeline.TurnResult{}, err
	}
	var res pipeline.TurnResult
	if err := decodeJSON(resp, &res); err != nil {
		return pipeline.TurnResult{}, err
	}
	return res, nil
}

func reply(ctx context.Context, c *apiClient, id int64, text string) (pipeline.TurnResult, error) {
	resp, err := c.post(ctx, projectPath(id, "/interview/reply"), api.ReplyRequest{Text: text})
	if err != nil {
		return pipeline.TurnResult{}, err
	}
	var res pipeline.TurnResult
	if err := decodeJSON(resp, &res); err != nil {
		return pipeline.TurnResult{}, err
	}
	return res, nil
}

// converse reads replies line by line until the interview completes, the
// input ends or an empty line is entered.
func converse(ctx context.Context, c *apiClient, id int64, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, colorize(colorBold, "> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			return nil
		}
		res, err := reply(ctx, c, id, text)
		if err != nil {
			return err
		}
		printTurn(out, res)
		if res.Complete {
			return nil
		}
	}
}

func printTurn(w io.Writer, res pipeline.TurnResult) {
	if res.Operation != "" && res.Score > 0 {
		mark := "applied"
		if !res.Applied {
			mark = "held"
		}
		fmt.Fprintln(w, colorize(colorYellow, fmt.Sprintf("[%s %.2f %s, %s]", res.Operation, res.Score, mark, res.Topic.Number)))
	}
	fmt.Fprintln(w, colorize(colorCyan, res.Question))
}

var interviewReplyCmd = &cobra.Command{
	Use:   "reply <id> <text>",
	Short: "Send a single reply and print the next question",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		res, err := reply(cmd.Context(), client, id, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		printTurn(os.Stdout, res)
		return nil
	},
}

var interviewChatCmd = &cobra.Command{
	Use:   "chat <id>",
	Short: "Print the transcript of a project",
	Args:  cobra.ExactArgs(1),
	RunE: withProject(func(ctx context.Context, c *apiClient, id int64) error {
		return showChat(ctx, c, id, os.Stdout)
	}),
}

func showChat(ctx context.Context, c *apiClient, id int64, w io.Writer) error {
	resp, err := c.get(ctx, projectPath(id, "/chat"))
	if err != nil {
		return err
	}
	var msgs []storage.Message
	if err := decodeJSON(resp, &msgs); err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages yet.")
		return nil
	}
	for _, m := range msgs {
		speaker := colorize(colorCyan, string(m.Role))
		if m.Role == storage.RoleInterviewee {
			speaker = colorize(colorGreen, string(m.Role))
		}
		fmt.Fprintf(w, "%s [%s]: %s\n", speaker, m.TopicNumber, m.Content)
	}
	return nil
}

func init() {
	interviewStartCmd.Flags().Bool("once", false, "print the current question and exit")
	interviewCmd.AddCommand(interviewStartCmd, interviewReplyCmd, interviewChatCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in the config file. Valid keys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
