package vkng

import (
	"github.com/ashengine/ash/gpu"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// Raw VkResult codes the driver reports as errors but the renderer handles.
const (
	resultDeviceLost      common.VkResult = -4
	resultFragmentedPool  common.VkResult = -12
	resultOutOfPoolMemory common.VkResult = -1000069000
)

// checkResult marks device loss so callers can match gpu.ErrDeviceLost.
func checkResult(res common.VkResult, err error) error {
	if err == nil {
		return nil
	}
	if res == resultDeviceLost {
		return errors.Mark(err, gpu.ErrDeviceLost)
	}
	return err
}

// swapchainResult turns the out-of-date and suboptimal codes of acquire and
// present into results instead of errors.
func swapchainResult(res common.VkResult, err error) (gpu.Result, error) {
	switch res {
	case khr_swapchain.VKErrorOutOfDate:
		return gpu.ResultOutOfDate, nil
	case khr_swapchain.VKSuboptimal:
		return gpu.ResultSuboptimal, nil
	}
	if err != nil {
		return gpu.ResultSuccess, checkResult(res, err)
	}
	return gpu.ResultSuccess, nil
}

func poolResult(res common.VkResult, err error) error {
	switch res {
	case resultOutOfPoolMemory:
		return errors.Mark(err, gpu.ErrOutOfPoolMemory)
	case resultFragmentedPool:
		return errors.Mark(err, gpu.ErrFragmentedPool)
	}
	return checkResult(res, err)
}
