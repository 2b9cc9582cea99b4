package session

import (
	"context"
	"net"
	"time"

	"github.com/tturner/enipcfg/internal/cip"
	"github.com/tturner/enipcfg/internal/config"
	"github.com/tturner/enipcfg/internal/device"
	"github.com/tturner/enipcfg/internal/logging"
)

// ProgressFunc reports writer progress before each attribute write. step is
// 1-based, total counts the attributes that will be attempted.
type ProgressFunc func(step, total int, attribute string)

// Writer applies a device.Configuration to a target over one session. Writes
// go out one attribute at a time, in a fixed order, with a settling delay
// between them; the first failure stops the sequence and marks the rest
// skipped.
type Writer struct {
	cfg      config.WriteConfig
	log      *logging.Logger
	progress ProgressFunc
}

// NewWriter returns a writer using cfg for timeouts and pacing. progress may
// be nil.
func NewWriter(cfg config.WriteConfig, log *logging.Logger, progress ProgressFunc) *Writer {
	return &Writer{cfg: cfg, log: log, progress: progress}
}

// plannedWrite is one attribute write in the sequence Apply will attempt.
type plannedWrite struct {
	attr cip.Attribute
	data []byte
}

// Apply writes conf to the device at addr. The result carries one entry per
// planned attribute, in write order, including entries skipped after a
// failure. The returned error is the reason the sequence stopped early;
// per-attribute CIP failures are reported in the result, not the error.
func (w *Writer) Apply(ctx context.Context, addr string, target device.Key, conf device.Configuration) (device.ConfigurationWriteResult, error) {
	result := device.ConfigurationWriteResult{Target: target}

	plan, err := buildPlan(conf)
	if err != nil {
		return result, err
	}

	client, err := Connect(ctx, addr, w.cfg.ConnectTimeout(), w.cfg.WriteTimeout(), w.log)
	if err != nil {
		for _, p := range plan {
			result.Results = append(result.Results, device.AttributeWriteResult{
				Name: p.attr.Name(), Skipped: true,
			})
		}
		return result, err
	}
	defer client.Close()

	for i, p := range plan {
		if len(result.Results) > 0 && !result.Results[len(result.Results)-1].Success {
			result.Results = append(result.Results, device.AttributeWriteResult{
				Name: p.attr.Name(), Skipped: true,
			})
			continue
		}

		if i > 0 {
			select {
			case <-time.After(w.cfg.InterMessageDelay()):
			case <-ctx.Done():
				result.Results = append(result.Results, device.AttributeWriteResult{
					Name: p.attr.Name(), Skipped: true,
				})
				continue
			}
		}

		if w.progress != nil {
			w.progress(i+1, len(plan), p.attr.Name())
		}

		res := w.writeOne(ctx, client, addr, p)
		result.Results = append(result.Results, res)
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// WriteAttribute performs a single Set_Attribute_Single exchange on its own
// session. Used for standalone writes like switching Configuration Control
// to static after a BootP assignment.
func (w *Writer) WriteAttribute(ctx context.Context, addr string, attr cip.Attribute, data []byte) (device.AttributeWriteResult, error) {
	client, err := Connect(ctx, addr, w.cfg.ConnectTimeout(), w.cfg.WriteTimeout(), w.log)
	if err != nil {
		return device.AttributeWriteResult{Name: attr.Name(), Skipped: true}, err
	}
	defer client.Close()

	return w.writeOne(ctx, client, addr, plannedWrite{attr: attr, data: data}), nil
}

// writeOne sends one Set_Attribute_Single and parses the reply. Transport
// and parse failures are recorded as failed writes with an empty status.
func (w *Writer) writeOne(ctx context.Context, client *Client, addr string, p plannedWrite) device.AttributeWriteResult {
	res := device.AttributeWriteResult{Name: p.attr.Name()}

	replyData, err := client.SendRRData(ctx, cip.BuildSetAttributeSingle(p.attr, p.data))
	if err != nil {
		res.ErrorMessage = err.Error()
		w.log.LogAttributeWrite(addr, res.Name, false, 0, err)
		return res
	}

	reply, err := cip.ParseSetAttributeReply(replyData)
	if err != nil {
		res.ErrorMessage = err.Error()
		w.log.LogAttributeWrite(addr, res.Name, false, 0, err)
		return res
	}

	res.Success = reply.Success
	res.StatusCode = reply.StatusCode
	res.ErrorMessage = reply.ErrorMessage
	w.log.LogAttributeWrite(addr, res.Name, res.Success, res.StatusCode, nil)
	return res
}

// buildPlan expands a configuration into the ordered attribute writes. IP
// and subnet mask always go first; optional fields are appended only when
// set. Values are assumed validated by Configuration.Validate.
func buildPlan(conf device.Configuration) ([]plannedWrite, error) {
	ipData, err := cip.EncodeIPv4(conf.IPAddress)
	if err != nil {
		return nil, err
	}
	maskData, err := cip.EncodeIPv4(net.IP(conf.SubnetMask))
	if err != nil {
		return nil, err
	}

	plan := []plannedWrite{
		{attr: cip.AttrIPAddress, data: ipData},
		{attr: cip.AttrSubnetMask, data: maskData},
	}

	if conf.Gateway != nil {
		data, err := cip.EncodeIPv4(conf.Gateway)
		if err != nil {
			return nil, err
		}
		plan = append(plan, plannedWrite{attr: cip.AttrGateway, data: data})
	}
	if conf.Hostname != "" {
		data, err := cip.EncodeHostname(conf.Hostname)
		if err != nil {
			return nil, err
		}
		plan = append(plan, plannedWrite{attr: cip.AttrHostname, data: data})
	}
	if conf.DNSServer != nil {
		data, err := cip.EncodeIPv4(conf.DNSServer)
		if err != nil {
			return nil, err
		}
		plan = append(plan, plannedWrite{attr: cip.AttrDNSServer, data: data})
	}

	return plan, nil
}
