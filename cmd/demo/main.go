// File: cmd/demo/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"local-chat-assistant/internal/application"
	"local-chat-assistant/internal/config"
	aiAdapters "local-chat-assistant/internal/infra/adapters/ai"
	"local-chat-assistant/internal/infra/i18n"
	"local-chat-assistant/internal/infra/logging"
	"local-chat-assistant/internal/usecase"
)

const workspace = "demo"

// A terminal chat against the configured model, kept in memory only.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file (optional)")
	model := flag.String("model", "", "override ai.model")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *model != "" {
		cfg.AI.Model = *model
	}
	cfg.Log.Level = "warn"
	logger := logging.NewWithWriter(cfg.Log, true, os.Stderr)

	ctx := context.Background()
	ai, err := aiAdapters.NewFromConfig(ctx, cfg.AI, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("inference")
	}
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		logger.Fatal().Err(err).Msg("translations")
	}

	infer := usecase.NewInferenceClient(ai, cfg.AI.Model, cfg.AI.Timeout, nil, logger)
	reg := usecase.NewWorkspaceRegistry(nil, logger)
	chatUC := usecase.NewChatUseCase(reg, infer, nil, nil, usecase.Limits{}, logger)
	facade := application.NewBotFacade(chatUC, tr, cfg.HTTP.MaxUploadBytes, logger)

	fmt.Printf("model %s at %s\n\n", cfg.AI.Model, cfg.AI.BaseURL)
	repl(ctx, facade, tr, os.Stdin, os.Stdout)
}

func repl(ctx context.Context, facade application.Facade, tr *i18n.Translator, in io.Reader, out io.Writer) {
	show := func(r application.Reply, err error) {
		if err != nil {
			fmt.Fprintf(out, "(%v)\n", err)
		}
		fmt.Fprintln(out, r.Text)
		fmt.Fprintln(out)
	}

	show(facade.HandleStart(ctx, workspace))
	show(facade.HandleHelp("help_demo"), nil)

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case ":quit", ":q":
			return
		case ":help":
			show(facade.HandleHelp("help_demo"), nil)
		case ":new":
			show(facade.HandleNewChat(ctx, workspace))
		case ":chats":
			show(facade.HandleChats(ctx, workspace))
		case ":select":
			show(facade.HandleSelect(ctx, workspace, arg))
		case ":clear":
			show(facade.HandleClear(ctx, workspace))
		case ":suggest":
			show(facade.HandleSuggestions(), nil)
		case ":upload":
			show(upload(ctx, facade, tr, arg))
		default:
			fmt.Fprintln(out, tr.T("thinking"))
			show(facade.HandleMessage(ctx, workspace, line))
		}
	}
}

func upload(ctx context.Context, facade application.Facade, tr *i18n.Translator, path string) (application.Reply, error) {
	if path == "" {
		return application.Reply{Text: tr.T("help_demo")}, nil
	}
	st, err := os.Stat(path)
	if err != nil {
		return application.Reply{Text: err.Error()}, nil
	}
	name := filepath.Base(path)
	if r, ok := facade.PrecheckUpload(name, st.Size()); !ok {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return application.Reply{Text: err.Error()}, nil
	}
	return facade.HandleUpload(ctx, workspace, name, data)
}
