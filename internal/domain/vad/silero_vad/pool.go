package silero_vad

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pool "github.com/jolestar/go-commons-pool/v2"

	"homey-assistant-golang/internal/domain/vad/inter"
	log "homey-assistant-golang/logger"
)

// 资源池默认配置
const (
	defaultPoolSize         = 10
	defaultAcquireTimeoutMs = 3000
)

// VADResourcePool silero检测器资源池
// 模型在预热阶段加载一次，检测器实例跨会话复用
type VADResourcePool struct {
	objectPool     *pool.ObjectPool
	maxSize        int
	acquireTimeout time.Duration
	config         map[string]interface{}
	initialized    bool
	mu             sync.Mutex
}

var (
	globalVADResourcePool *VADResourcePool
	once                  sync.Once
)

// vadFactory go-commons-pool工厂，创建/销毁/校验SileroVAD实例
func vadFactory(config map[string]interface{}) pool.PooledObjectFactory {
	return pool.NewPooledObjectFactory(
		func(ctx context.Context) (interface{}, error) {
			return NewSileroVAD(config)
		},
		func(ctx context.Context, object *pool.PooledObject) error {
			if vad, ok := object.Object.(*SileroVAD); ok {
				return vad.Close()
			}
			return nil
		},
		func(ctx context.Context, object *pool.PooledObject) bool {
			vad, ok := object.Object.(*SileroVAD)
			return ok && vad.detector != nil
		},
		nil,
		// 归还前重置检测器状态，避免上一段语音影响下一段
		func(ctx context.Context, object *pool.PooledObject) error {
			if vad, ok := object.Object.(*SileroVAD); ok {
				return vad.Reset()
			}
			return nil
		},
	)
}

// InitVadPool 初始化silero资源池，进程预热阶段调用一次
func InitVadPool(config map[string]interface{}) error {
	var initErr error
	once.Do(func() {
		p := &VADResourcePool{
			maxSize:        defaultPoolSize,
			acquireTimeout: defaultAcquireTimeoutMs * time.Millisecond,
			config:         config,
		}

		if poolSize, ok := config["pool_size"].(int); ok && poolSize > 0 {
			p.maxSize = poolSize
		}
		if timeoutMs, ok := config["acquire_timeout_ms"].(int64); ok && timeoutMs > 0 {
			p.acquireTimeout = time.Duration(timeoutMs) * time.Millisecond
		}

		modelPath, _ := config["model_path"].(string)
		if modelPath == "" {
			initErr = errors.New("模型路径不能为空")
			return
		}

		ctx := context.Background()
		objectPool := pool.NewObjectPoolWithDefaultConfig(ctx, vadFactory(config))
		objectPool.Config.MaxTotal = p.maxSize
		objectPool.Config.MaxIdle = p.maxSize
		objectPool.Config.TestOnBorrow = true
		objectPool.Config.BlockWhenExhausted = true
		objectPool.Config.MaxWaitMillis = p.acquireTimeout.Milliseconds()

		// 预创建一个实例验证模型可加载，加载失败在启动时暴露
		probe, err := objectPool.BorrowObject(ctx)
		if err != nil {
			initErr = fmt.Errorf("加载VAD模型失败: %v", err)
			return
		}
		if err := objectPool.ReturnObject(ctx, probe); err != nil {
			log.Warnf("归还VAD探测实例失败: %v", err)
		}

		p.objectPool = objectPool
		p.initialized = true
		globalVADResourcePool = p
		log.Infof("VAD资源池初始化完成，模型路径: %s，池大小: %d", modelPath, p.maxSize)
	})
	return initErr
}

// AcquireVAD 从资源池借出一个VAD实例
func AcquireVAD(config map[string]interface{}) (inter.VAD, error) {
	p := globalVADResourcePool
	if p == nil || !p.initialized {
		return nil, errors.New("VAD资源池尚未初始化")
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.acquireTimeout)
	defer cancel()

	obj, err := p.objectPool.BorrowObject(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取VAD实例失败: %v", err)
	}

	vad, ok := obj.(*SileroVAD)
	if !ok {
		p.objectPool.ReturnObject(context.Background(), obj)
		return nil, errors.New("资源池返回了非SileroVAD实例")
	}

	log.Debugf("借出VAD实例, 活跃: %d/%d", p.objectPool.GetNumActive(), p.maxSize)
	return vad, nil
}

// ReleaseVAD 归还VAD实例
func ReleaseVAD(vad inter.VAD) error {
	p := globalVADResourcePool
	if p == nil || !p.initialized {
		return nil
	}
	sileroVAD, ok := vad.(*SileroVAD)
	if !ok {
		return errors.New("非silero类型的VAD实例")
	}
	return p.objectPool.ReturnObject(context.Background(), sileroVAD)
}

// CloseVadPool 关闭资源池并销毁所有检测器
func CloseVadPool() {
	p := globalVADResourcePool
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.objectPool != nil {
		p.objectPool.Close(context.Background())
	}
	p.initialized = false
}
