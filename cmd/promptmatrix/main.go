package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"promptmatrix/internal/adapter/history"
	"promptmatrix/internal/adapter/llm"
	"promptmatrix/internal/adapter/providerdir"
	"promptmatrix/internal/domain"
	"promptmatrix/internal/infra/config"
	"promptmatrix/internal/infra/logger"
	"promptmatrix/internal/infra/tracer"
	"promptmatrix/internal/usecase"
	"promptmatrix/internal/usecase/flow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		// No config file: run on defaults plus environment variables.
		cfg = config.Default()
		err = nil
	}
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	directory, err := providerdir.Open(cfg.Providers.File, log)
	if err != nil {
		return err
	}

	client := llm.NewClient(cfg.LLM, directory, log)
	if err := client.Initialize(cfg.LLM.ToProviderConfig()); err != nil {
		return fmt.Errorf("initialize completion client: %w", err)
	}

	registry := usecase.NewRegistry()
	usecase.LoadPromptOverrides(registry, cfg.Prompts.Dir, log)

	guard, err := usecase.NewTokenGuard(cfg.Router.ContextWindow, log)
	if err != nil {
		return err
	}

	router := usecase.NewRouter(
		usecase.NewConductor(log),
		registry,
		client,
		usecase.RouterOptions{
			MaxHistory: cfg.Router.MaxHistory,
			Config:     cfg.LLM.ToProviderConfig(),
			Store:      history.NewStore(cfg.History.File),
			Guard:      guard,
		},
		log,
	)

	var runStore domain.FlowRunStore
	if cfg.Flows.RunsDir != "" {
		runStore = flow.NewFileStore(cfg.Flows.RunsDir)
	}
	engine := flow.NewEngine(router, runStore, log)
	for _, t := range flow.LoadTemplates(cfg.Flows.Dir, log) {
		engine.AddTemplate(t)
	}

	return repl(ctx, client, router, engine)
}

func repl(ctx context.Context, client *llm.Client, router *usecase.Router, engine *flow.Engine) error {
	fmt.Println("PromptMatrix - 提示词工程助手")
	fmt.Println("输入 /help 查看命令，/quit 退出")

	var forced domain.AgentType
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if forced != "" {
			fmt.Printf("[%s]> ", forced)
		} else {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			done, err := handleCommand(ctx, line, client, router, engine, &forced)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		if err := streamChat(ctx, router, line, forced); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func handleCommand(ctx context.Context, line string, client *llm.Client, router *usecase.Router, engine *flow.Engine, forced *domain.AgentType) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		printHelp()

	case "/agents":
		for _, a := range router.ListAgents() {
			fmt.Printf("  %-24s %s\n", a.ID, a.DisplayName)
		}

	case "/use":
		if arg == "" {
			*forced = ""
			fmt.Println("已恢复自动路由")
			return false, nil
		}
		*forced = domain.NormalizeCustomID(arg)
		fmt.Printf("后续消息将固定交给 %s\n", *forced)

	case "/flows":
		for _, t := range engine.Templates() {
			fmt.Printf("  %-28s %s（%d 步）\n", t.ID, t.Name, len(t.Steps))
		}

	case "/flow":
		id, input, _ := strings.Cut(arg, " ")
		if id == "" || strings.TrimSpace(input) == "" {
			return false, fmt.Errorf("usage: /flow <template-id> <input>")
		}
		if err := engine.SelectTemplate(id); err != nil {
			return false, err
		}
		return false, runFlow(ctx, engine, strings.TrimSpace(input))

	case "/history":
		for _, m := range router.GetHistory() {
			fmt.Printf("  [%s] %s\n", m.Role, m.Content)
		}

	case "/clear":
		router.ClearHistory()
		fmt.Println("对话历史已清空")

	case "/models":
		models, err := client.ListModels(ctx)
		if err != nil {
			return false, err
		}
		for _, m := range models {
			fmt.Println("  " + m)
		}

	default:
		return false, fmt.Errorf("unknown command: %s", cmd)
	}
	return false, nil
}

func streamChat(ctx context.Context, router *usecase.Router, input string, forced domain.AgentType) error {
	ch, err := router.HandleRequestStream(ctx, input, forced)
	if err != nil {
		return err
	}
	inContent := false
	var streamErr error
	for delta := range ch {
		if delta.Err != nil {
			streamErr = delta.Err
			continue
		}
		if delta.Thinking != "" {
			fmt.Println(delta.Thinking)
			fmt.Println()
		}
		if delta.Content != "" {
			inContent = true
			fmt.Print(delta.Content)
		}
	}
	if inContent {
		fmt.Println()
	}
	return streamErr
}

func runFlow(ctx context.Context, engine *flow.Engine, input string) error {
	run, err := engine.Run(ctx, input)
	if run != nil {
		for _, s := range run.Steps {
			fmt.Printf("  [%s] %s\n", s.Status, s.Title)
			if s.OutputSummary != "" {
				fmt.Println("      " + strings.ReplaceAll(s.OutputSummary, "\n", "\n      "))
			}
			if s.ErrorMessage != "" {
				fmt.Println("      error: " + s.ErrorMessage)
			}
		}
		if run.Status == domain.StepSuccess {
			last := run.Steps[len(run.Steps)-1]
			fmt.Println("\n最终结果：")
			fmt.Println(last.OutputFull)
		}
	}
	return err
}

func printHelp() {
	fmt.Println(`命令：
  /agents              列出已注册的 Agent
  /use <agent-id>      固定使用某个 Agent（/use 恢复自动路由）
  /flows               列出可用的流程模板
  /flow <id> <输入>    运行一个流程模板
  /history             查看对话历史
  /clear               清空对话历史
  /models              列出当前 Provider 的可用模型
  /quit                退出`)
}
