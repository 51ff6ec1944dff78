package mocks

//go:generate mockgen -destination=./mock_datasource.go -package=mocks github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine/engine_v1/datasource DataSource
//go:generate mockgen -destination=./mock_publisher.go -package=mocks github.com/rxtech-lab/argo-range-backtest/pkg/publish Publisher
