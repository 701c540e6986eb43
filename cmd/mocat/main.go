package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mocat/internal/app"
	"mocat/internal/config"
	"mocat/internal/logger"
	"mocat/internal/market"
)

func main() {
	var (
		mode       = flag.String("mode", "backtest", "backtest | optimise | replay")
		marketName = flag.String("market", "NIFTY", "NIFTY | BANKNIFTY")
		fromDate   = flag.String("from", "", "start date, YYYY-MM-DD")
		toDate     = flag.String("to", "", "end date, YYYY-MM-DD")
		fromTime   = flag.String("from-time", "09:15:00", "start time on the first day")
		toTime     = flag.String("to-time", "15:30:00", "end time on the last day")
		purpose    = flag.String("purpose", "", "free-form label stored with the results")
		paramsFile = flag.String("params", "", "optimised params file for replay mode")
	)
	flag.Parse()

	cfgPath := os.Getenv("MOCAT_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logger.SetLevel(cfg.Log.Level)

	opts, err := buildRunOptions(*marketName, *fromDate, *toDate, *fromTime, *toTime, *purpose, *paramsFile)
	if err != nil {
		log.Fatalf("参数不合法: %v", err)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}

	// Ctrl-C 触发协作式取消，在途任务自然跑完
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "backtest":
		err = a.RunBacktest(ctx, opts)
	case "optimise":
		err = a.RunOptimise(ctx, opts)
	case "replay":
		err = a.RunReplay(ctx, opts)
	default:
		log.Fatalf("未知模式: %s", *mode)
	}
	if err != nil {
		log.Fatalf("运行失败: %v", err)
	}
}

func buildRunOptions(marketName, fromDate, toDate, fromTime, toTime, purpose, paramsFile string) (app.RunOptions, error) {
	m, err := market.ParseMarket(marketName)
	if err != nil {
		return app.RunOptions{}, err
	}
	start, err := parseDate(fromDate)
	if err != nil {
		return app.RunOptions{}, err
	}
	end, err := parseDate(toDate)
	if err != nil {
		return app.RunOptions{}, err
	}
	startTime, err := market.ParseClockTime(fromTime)
	if err != nil {
		return app.RunOptions{}, err
	}
	endTime, err := market.ParseClockTime(toTime)
	if err != nil {
		return app.RunOptions{}, err
	}
	return app.RunOptions{
		Market:     m,
		StartDate:  start,
		EndDate:    end,
		StartTime:  startTime,
		EndTime:    endTime,
		Purpose:    purpose,
		ParamsFile: paramsFile,
	}, nil
}

func parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", raw, market.IST)
}
