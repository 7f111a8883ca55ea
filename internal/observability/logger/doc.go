// Package logger expone un logger Zap singleton con scoping por contexto.
//
//   - Init() una vez en el arranque; L()/Named()/With() en cualquier parte.
//   - Los middlewares HTTP inyectan un logger con request_id via ToContext().
//   - Los services usan From(ctx) y agregan layer/op.
//
// Uso típico en un service:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Exchange"))
//	log.Warn("provider exchange failed", logger.Provider(name), logger.Err(err))
//
// Los emails nunca se loguean en claro: usar MaskedEmail().
package logger
