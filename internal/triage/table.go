package triage

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shenikar/sos_dispatch/internal/models"
	"gopkg.in/yaml.v3"
)

// Table - конфигурация правил сортировки, передается компонентам при создании
type Table struct {
	Knowledge  KnowledgeBase
	Thresholds SeverityThresholds
}

// DefaultTable возвращает встроенные таблицы
func DefaultTable() Table {
	return Table{
		Knowledge:  DefaultKnowledgeBase(),
		Thresholds: DefaultThresholds(),
	}
}

type tableFile struct {
	Knowledge []struct {
		Keyword  string `yaml:"keyword"`
		Advice   string `yaml:"advice"`
		Priority string `yaml:"priority"`
	} `yaml:"knowledge"`
	Default struct {
		Advice   string `yaml:"advice"`
		Priority string `yaml:"priority"`
	} `yaml:"default"`
	Thresholds yaml.Node `yaml:"thresholds"`
}

// LoadTable читает таблицу из YAML файла. Пустой путь - встроенная таблица.
// Отсутствующие в файле секции берутся из встроенной таблицы.
func LoadTable(path string) (Table, error) {
	table := DefaultTable()
	if strings.TrimSpace(path) == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read triage table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable разбирает YAML-представление таблицы
func ParseTable(data []byte) (Table, error) {
	table := DefaultTable()
	if len(strings.TrimSpace(string(data))) == 0 {
		return Table{}, errors.New("triage table is empty")
	}

	var raw tableFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Table{}, fmt.Errorf("failed to parse triage table: %w", err)
	}

	if len(raw.Knowledge) > 0 {
		entries := make([]KnowledgeEntry, 0, len(raw.Knowledge))
		for i, item := range raw.Knowledge {
			if strings.TrimSpace(item.Keyword) == "" {
				return Table{}, fmt.Errorf("knowledge entry %d: keyword is required", i)
			}
			priority, err := models.ParseSeverity(item.Priority)
			if err != nil {
				return Table{}, fmt.Errorf("knowledge entry %q: %w", item.Keyword, err)
			}
			entries = append(entries, KnowledgeEntry{
				Keyword:  item.Keyword,
				Advice:   item.Advice,
				Priority: priority,
			})
		}
		table.Knowledge.Entries = entries
	}

	if raw.Default.Advice != "" {
		table.Knowledge.DefaultAdvice = raw.Default.Advice
	}
	if raw.Default.Priority != "" {
		priority, err := models.ParseSeverity(raw.Default.Priority)
		if err != nil {
			return Table{}, fmt.Errorf("default entry: %w", err)
		}
		table.Knowledge.DefaultPriority = priority
	}

	if !raw.Thresholds.IsZero() {
		thresholds := DefaultThresholds()
		if err := raw.Thresholds.Decode(&thresholds); err != nil {
			return Table{}, fmt.Errorf("failed to parse thresholds: %w", err)
		}
		table.Thresholds = thresholds
	}
	return table, nil
}
