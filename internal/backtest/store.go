package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type backtestModel struct {
	ID                string         `gorm:"column:id;primaryKey"`
	Market            string         `gorm:"column:market;index"`
	Purpose           string         `gorm:"column:purpose"`
	StartDate         string         `gorm:"column:start_date"`
	StartTime         string         `gorm:"column:start_time"`
	EndDate           string         `gorm:"column:end_date"`
	EndTime           string         `gorm:"column:end_time"`
	ChartConfig       datatypes.JSON `gorm:"column:chart_config"`
	TradeConfig       datatypes.JSON `gorm:"column:trade_config"`
	TradeCount        int            `gorm:"column:trade_count"`
	WinningTradeCount int            `gorm:"column:winning_trade_count"`
	LosingTradeCount  int            `gorm:"column:losing_trade_count"`
	SuccessRate       *float64       `gorm:"column:success_rate"`
	CreatedAtUnix     int64          `gorm:"column:created_at"`
}

func (backtestModel) TableName() string { return "backtests" }

type dailyBacktestModel struct {
	ID                int64    `gorm:"column:id;primaryKey;autoIncrement"`
	BacktestID        string   `gorm:"column:backtest_id;index"`
	Date              string   `gorm:"column:date"`
	StartTime         string   `gorm:"column:start_time"`
	EndTime           string   `gorm:"column:end_time"`
	ExpectedDirection string   `gorm:"column:expected_direction"`
	TradeCount        int      `gorm:"column:trade_count"`
	WinningTradeCount int      `gorm:"column:winning_trade_count"`
	LosingTradeCount  int      `gorm:"column:losing_trade_count"`
	SuccessRate       *float64 `gorm:"column:success_rate"`
}

func (dailyBacktestModel) TableName() string { return "daily_backtests" }

type tradeModel struct {
	ID                int64   `gorm:"column:id;primaryKey;autoIncrement"`
	BacktestID        string  `gorm:"column:backtest_id;index"`
	DailyBacktestID   int64   `gorm:"column:daily_backtest_id;index"`
	Date              string  `gorm:"column:date"`
	ExpectedDirection string  `gorm:"column:expected_direction"`
	EntryTime         string  `gorm:"column:entry_time"`
	EntryPrice        float64 `gorm:"column:entry_price"`
	EntryReason       string  `gorm:"column:entry_reason"`
	ExitTime          string  `gorm:"column:exit_time"`
	ExitPrice         float64 `gorm:"column:exit_price"`
	ExitReason        string  `gorm:"column:exit_reason"`
	Gain              float64 `gorm:"column:gain"`
}

func (tradeModel) TableName() string { return "trades" }

type optimisationModel struct {
	ID                string         `gorm:"column:id;primaryKey"`
	Engine            string         `gorm:"column:engine"`
	Market            string         `gorm:"column:market;index"`
	Purpose           string         `gorm:"column:purpose"`
	TradeCount        int            `gorm:"column:optimised_trade_count"`
	WinningTradeCount int            `gorm:"column:optimised_winning_trade_count"`
	LosingTradeCount  int            `gorm:"column:optimised_losing_trade_count"`
	SuccessRate       *float64       `gorm:"column:optimised_success_rate"`
	ChartConfig       datatypes.JSON `gorm:"column:optimised_chart_config"`
	TradeConfig       datatypes.JSON `gorm:"column:optimised_trade_config"`
	StartedAtUnix     int64          `gorm:"column:started_at"`
	FinishedAtUnix    int64          `gorm:"column:finished_at"`
}

func (optimisationModel) TableName() string { return "optimisations" }

// OptimisationRecord 为待持久化的搜索结果摘要。
type OptimisationRecord struct {
	ID                string
	Engine            string
	Market            string
	Purpose           string
	TradeCount        int
	WinningTradeCount int
	LosingTradeCount  int
	SuccessRate       *float64
	ChartConfig       ChartConfig
	TradeConfig       TradeConfig
	StartedAt         time.Time
	FinishedAt        time.Time
}

// ResultStore 把回测与搜索结果写进 SQLite。只写不读。
type ResultStore struct {
	db *gorm.DB
}

// OpenResultStore 打开或建立结果库。
func OpenResultStore(path string) (*ResultStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("result store: 结果库路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&backtestModel{},
		&dailyBacktestModel{},
		&tradeModel{},
		&optimisationModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	return &ResultStore{db: db}, nil
}

// SaveBacktest 在一个事务里写入跑批结果及其全部日结果和交易。
func (s *ResultStore) SaveBacktest(ctx context.Context, result *Result) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveBacktestTx(tx, result)
	})
}

// SaveOptimisation 写入搜索摘要和最优候选对应的全部回测结果。
func (s *ResultStore) SaveOptimisation(ctx context.Context, record OptimisationRecord, results []*Result) error {
	chartRaw, err := json.Marshal(record.ChartConfig)
	if err != nil {
		return err
	}
	tradeRaw, err := json.Marshal(record.TradeConfig)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := optimisationModel{
			ID:                record.ID,
			Engine:            record.Engine,
			Market:            record.Market,
			Purpose:           record.Purpose,
			TradeCount:        record.TradeCount,
			WinningTradeCount: record.WinningTradeCount,
			LosingTradeCount:  record.LosingTradeCount,
			SuccessRate:       record.SuccessRate,
			ChartConfig:       datatypes.JSON(chartRaw),
			TradeConfig:       datatypes.JSON(tradeRaw),
			StartedAtUnix:     record.StartedAt.Unix(),
			FinishedAtUnix:    record.FinishedAt.Unix(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for _, result := range results {
			if err := saveBacktestTx(tx, result); err != nil {
				return err
			}
		}
		return nil
	})
}

func saveBacktestTx(tx *gorm.DB, result *Result) error {
	chartRaw, err := json.Marshal(result.ChartConfig)
	if err != nil {
		return err
	}
	tradeRaw, err := json.Marshal(result.TradeConfig)
	if err != nil {
		return err
	}

	row := backtestModel{
		ID:                result.ID,
		Market:            string(result.Market),
		Purpose:           result.Purpose,
		StartDate:         result.StartDate.Format("2006-01-02"),
		StartTime:         result.StartTime.String(),
		EndDate:           result.EndDate.Format("2006-01-02"),
		EndTime:           result.EndTime.String(),
		ChartConfig:       datatypes.JSON(chartRaw),
		TradeConfig:       datatypes.JSON(tradeRaw),
		TradeCount:        result.TradeCount,
		WinningTradeCount: result.WinningTradeCount,
		LosingTradeCount:  result.LosingTradeCount,
		SuccessRate:       result.SuccessRate,
		CreatedAtUnix:     time.Now().Unix(),
	}
	if err := tx.Create(&row).Error; err != nil {
		return err
	}

	for _, daily := range result.Daily {
		dailyRow := dailyBacktestModel{
			BacktestID:        result.ID,
			Date:              daily.Date.Format("2006-01-02"),
			StartTime:         daily.StartTime.String(),
			EndTime:           daily.EndTime.String(),
			ExpectedDirection: string(daily.ExpectedDirection),
			TradeCount:        daily.TradeCount,
			WinningTradeCount: daily.WinningTradeCount,
			LosingTradeCount:  daily.LosingTradeCount,
			SuccessRate:       daily.SuccessRate,
		}
		if err := tx.Create(&dailyRow).Error; err != nil {
			return err
		}
		for _, trade := range daily.Trades {
			tradeRow := tradeModel{
				BacktestID:        result.ID,
				DailyBacktestID:   dailyRow.ID,
				Date:              trade.Date.Format("2006-01-02"),
				ExpectedDirection: string(trade.ExpectedDirection),
				EntryTime:         trade.EntryTime.String(),
				EntryPrice:        trade.EntryPrice,
				EntryReason:       trade.EntryReason,
				ExitTime:          trade.ExitTime.String(),
				ExitPrice:         trade.ExitPrice,
				ExitReason:        trade.ExitReason,
				Gain:              trade.Gain,
			}
			if err := tx.Create(&tradeRow).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
