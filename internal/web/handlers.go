package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/tradedash/crypto_bot_dash/internal/domain"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleListBots(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Bots())
}

func (s *Server) handleGetBot(w http.ResponseWriter, r *http.Request) {
	bot, ok := s.engine.Bot(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "bot not found")
		return
	}
	s.writeJSON(w, http.StatusOK, bot)
}

func (s *Server) handleAddBot(w http.ResponseWriter, r *http.Request) {
	var bot domain.BotConfig
	if err := json.NewDecoder(r.Body).Decode(&bot); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateBot(&bot); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.engine.AddBot(r.Context(), &bot)
	if err != nil {
		s.logger.Error("Failed to add bot", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to add bot")
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteBot(w http.ResponseWriter, r *http.Request) {
	err := s.engine.DeleteBot(r.Context(), r.PathValue("id"))
	if errors.Is(err, domain.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "bot not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to delete bot", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to delete bot")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Positions())
}

func (s *Server) handleActivatePosition(w http.ResponseWriter, r *http.Request) {
	pos, err := s.engine.ForceActivate(r.Context(), r.PathValue("id"))
	if errors.Is(err, domain.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "position not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	pos, err := s.engine.ClosePosition(r.Context(), r.PathValue("id"))
	if errors.Is(err, domain.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "position not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to close position", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to close position")
		return
	}
	s.writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleDeletePosition(w http.ResponseWriter, r *http.Request) {
	err := s.engine.DeletePosition(r.Context(), r.PathValue("id"))
	if errors.Is(err, domain.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "position not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to delete position", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to delete position")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Notifications())
}

// validateBot checks the fields a strategy actually uses. Identity fields
// (ID, timestamps) are filled in by the engine.
func validateBot(bot *domain.BotConfig) error {
	if bot.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(bot.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	for _, sym := range bot.Symbols {
		if sym == "" {
			return fmt.Errorf("symbols must not be empty")
		}
	}
	if bot.Margin <= 0 {
		return fmt.Errorf("margin must be positive")
	}
	if bot.Leverage < 0 {
		return fmt.Errorf("leverage must not be negative")
	}
	if bot.Side != "" && bot.Side != domain.SideLong && bot.Side != domain.SideShort {
		return fmt.Errorf("side must be LONG or SHORT")
	}

	switch bot.Kind {
	case domain.StrategyStreak:
		if bot.ConsecutiveCandles < 1 {
			return fmt.Errorf("consecutive_candles must be at least 1")
		}
		if bot.Timeframe == "" {
			return fmt.Errorf("timeframe is required for streak bots")
		}
	case domain.StrategyRSI:
		if bot.RSIThreshold <= 0 || bot.RSIThreshold > 100 {
			return fmt.Errorf("rsi_threshold must be in (0, 100]")
		}
		if bot.Timeframe == "" {
			return fmt.Errorf("timeframe is required for rsi bots")
		}
	case domain.StrategyMovement:
		if bot.MovementSymbol == "" {
			return fmt.Errorf("movement_symbol is required")
		}
		if bot.MovementThreshold <= 0 {
			return fmt.Errorf("movement_threshold must be positive")
		}
		if bot.MovementTimeframe == "" {
			return fmt.Errorf("movement_timeframe is required")
		}
	case domain.StrategyGrid:
		if bot.GridLower <= 0 || bot.GridUpper <= bot.GridLower {
			return fmt.Errorf("grid range must satisfy 0 < lower < upper")
		}
		if bot.GridCount < 0 {
			return fmt.Errorf("grid_count must not be negative")
		}
	case domain.StrategyDCA:
		if bot.DCAOrderCount < 1 {
			return fmt.Errorf("dca_order_count must be at least 1")
		}
		if bot.DCAStepPct < 0 {
			return fmt.Errorf("dca_step_pct must not be negative")
		}
	default:
		return fmt.Errorf("unknown strategy kind %q", bot.Kind)
	}
	return nil
}
