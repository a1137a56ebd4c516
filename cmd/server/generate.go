// cmd/server/generate.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Corphon/CoffeeWithCinema/internal/config"
	"github.com/Corphon/CoffeeWithCinema/internal/models"
	"github.com/Corphon/CoffeeWithCinema/internal/prompts"
	"github.com/Corphon/CoffeeWithCinema/internal/services"
	"github.com/Corphon/CoffeeWithCinema/internal/utils"

	_ "github.com/Corphon/CoffeeWithCinema/internal/llm/providers/ollama"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#B5651D"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFBA08"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errSomeFails = errors.New("some exports failed")
)

type genFlags struct {
	idea       string
	demo       bool
	out        string
	formats    []string
	sections   []string
	user       string
	endpoint   string
	model      string
	concurrent bool
	plain      bool
	verbose    bool
}

func newGenerateCmd(configDir *string) *cobra.Command {
	var f genFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a screenplay from the command line and write the exports to disk",
		Example: `  cinema generate --idea "A heist on the moon" --format txt,pdf
  cinema generate --demo --out ./scripts --section all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), cmd.OutOrStdout(), afero.NewOsFs(), configPaths(*configDir), f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.idea, "idea", "i", "", "Story idea")
	flags.BoolVar(&f.demo, "demo", false, "Use the built-in demo story")
	flags.StringVarP(&f.out, "out", "o", ".", "Output directory")
	flags.StringSliceVarP(&f.formats, "format", "f", []string{"txt", "pdf", "docx"}, "Export formats (txt, pdf, docx)")
	flags.StringSliceVarP(&f.sections, "section", "s", []string{"all"}, "Sections to export (screenplay, characters, sound_design, all)")
	flags.StringVar(&f.user, "user", "", "User name")
	flags.StringVar(&f.endpoint, "endpoint", "", "Ollama generate endpoint")
	flags.StringVarP(&f.model, "model", "m", "", "Model name")
	flags.BoolVar(&f.concurrent, "concurrent", false, "Run the three stages in parallel")
	flags.BoolVar(&f.plain, "plain", false, "Print progress lines instead of the interactive spinner")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "Show service logs")
	return cmd
}

func runGenerate(ctx context.Context, out io.Writer, fs afero.Fs, paths []string, f genFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(paths...)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	level := "error"
	if f.verbose {
		level = "debug"
	}
	if err := utils.InitLogger(utils.LoggerConfig{Level: level, Format: "console", Dir: cfg.LogDir}); err != nil {
		return err
	}

	formats, err := parseFormats(f.formats)
	if err != nil {
		return err
	}
	sections, err := parseSections(f.sections)
	if err != nil {
		return err
	}

	idea := f.idea
	if f.demo {
		idea = prompts.DemoStory
	}

	sessions := services.NewSessionService(cfg.Defaults, cfg.Session.TTL)
	sess := sessions.Create()
	settings, err := sessions.UpdateSettings(sess, config.Settings{
		UserName:    f.user,
		APIEndpoint: f.endpoint,
		ModelName:   f.model,
	})
	if err != nil {
		return err
	}

	progress := services.NewProgressService()
	llmService := services.NewLLMService(cfg.Inference.Provider, cfg.Inference.Timeout)
	generation := services.NewGenerationService(llmService, progress, services.GenerationOptions{
		Concurrent:  cfg.Generation.Concurrent || f.concurrent,
		RejectEmpty: cfg.Generation.RejectEmpty,
	})

	fmt.Fprintln(out, titleStyle.Render("☕ Coffee with Cinema"))
	fmt.Fprintln(out, subtleStyle.Render(fmt.Sprintf("Welcome, %s! Using %s @ %s", settings.UserName, settings.ModelName, settings.APIEndpoint)))

	var result *models.GenerationResult
	if f.plain {
		result, err = generatePlain(ctx, out, generation, progress, sess, idea)
	} else {
		result, err = generateInteractive(ctx, generation, progress, sess, idea)
	}
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("✗ "+err.Error()))
		return err
	}
	fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("✓ All content generated in %s", result.Duration.Round(time.Millisecond))))

	return writeExports(out, fs, services.NewExportService(), result, f.out, formats, sections)
}

// writeExports 写出所有请求的文件；单个格式失败不影响其余格式
func writeExports(out io.Writer, fs afero.Fs, exports *services.ExportService, result *models.GenerationResult, dir string, formats []models.ExportFormat, sections []models.Section) error {
	failed := false
	report := func(section models.Section, format models.ExportFormat, err error) {
		failed = true
		fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("✗ %s %s: %v", section, format, err)))
	}

	for _, section := range sections {
		artifacts, failures := exports.ExportAll(result, section, formats...)
		for _, format := range formats {
			if err, ok := failures[format]; ok {
				report(section, format, err)
			}
		}
		for _, artifact := range artifacts {
			if _, err := exports.SaveArtifact(fs, dir, artifact); err != nil {
				report(section, artifact.Format, err)
				continue
			}
			fmt.Fprintf(out, "%s %s %s\n", okStyle.Render("✓"), artifact.FilePath, subtleStyle.Render(fmt.Sprintf("(%d bytes)", artifact.Size)))
		}
	}
	if failed {
		return errSomeFails
	}
	return nil
}

func generatePlain(ctx context.Context, out io.Writer, gen *services.GenerationService, progress *services.ProgressService, sess *models.Session, idea string) (*models.GenerationResult, error) {
	updates := progress.Subscribe(sess.ID)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for u := range updates {
			if u.Status == services.StatusRunning && u.Message != "" {
				fmt.Fprintln(out, subtleStyle.Render(fmt.Sprintf("[%3d%%] %s", u.Progress, u.Message)))
			}
		}
	}()

	result, err := gen.Generate(ctx, sess, idea)
	progress.Unsubscribe(sess.ID, updates)
	<-printed
	return result, err
}

func parseFormats(values []string) ([]models.ExportFormat, error) {
	var formats []models.ExportFormat
	seen := make(map[models.ExportFormat]bool)
	for _, v := range values {
		f, err := models.ParseExportFormat(v)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return nil, errors.New("at least one export format is required")
	}
	return formats, nil
}

func parseSections(values []string) ([]models.Section, error) {
	var sections []models.Section
	seen := make(map[models.Section]bool)
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), "all") {
			return models.AllSections, nil
		}
		s, err := models.ParseSection(v)
		if err != nil {
			return nil, err
		}
		if !seen[s] {
			seen[s] = true
			sections = append(sections, s)
		}
	}
	if len(sections) == 0 {
		return []models.Section{models.SectionScreenplay}, nil
	}
	return sections, nil
}
